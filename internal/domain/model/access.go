package model

import "fmt"

type CapabilityKind string

const (
	CapAnyActiveSubscription CapabilityKind = "any"
	CapSixMonthOnly          CapabilityKind = "six_month"
	CapWebinarGrant          CapabilityKind = "webinar"
	CapDripContent           CapabilityKind = "drip"
)

// Capability is what a protected resource requires from the caller.
type Capability struct {
	Kind      CapabilityKind
	WebinarID string // CapWebinarGrant
	Day       int    // CapDripContent, 1-based slot
}

func AnyActiveSubscription() Capability { return Capability{Kind: CapAnyActiveSubscription} }
func SixMonthOnly() Capability          { return Capability{Kind: CapSixMonthOnly} }
func SpecificWebinarGrant(webinarID string) Capability {
	return Capability{Kind: CapWebinarGrant, WebinarID: webinarID}
}
func DripContent(day int) Capability { return Capability{Kind: CapDripContent, Day: day} }

func (c Capability) Validate() error {
	switch c.Kind {
	case CapAnyActiveSubscription, CapSixMonthOnly:
		return nil
	case CapWebinarGrant:
		if c.WebinarID == "" {
			return fmt.Errorf("capability %s requires a webinar id", c.Kind)
		}
		return nil
	case CapDripContent:
		if c.Day < 1 || c.Day > DripSlots {
			return fmt.Errorf("capability %s requires day in 1..%d", c.Kind, DripSlots)
		}
		return nil
	}
	return fmt.Errorf("unknown capability %q", c.Kind)
}

func (c Capability) String() string { return string(c.Kind) }

type DecisionReason string

const (
	ReasonSixMonthAccess      DecisionReason = "SixMonthAccess"
	ReasonFourDayAccess       DecisionReason = "FourDayAccess"
	ReasonWebinarGrant        DecisionReason = "WebinarGrant"
	ReasonNoActiveEntitlement DecisionReason = "NoActiveEntitlement"
	ReasonNeverSubscribed     DecisionReason = "NeverSubscribed"
	ReasonUpgradeRequired     DecisionReason = "UpgradeRequired"
	ReasonNoWebinarGrant      DecisionReason = "NoWebinarGrant"
	ReasonContentLocked       DecisionReason = "ContentLocked"
	ReasonUnknownUser         DecisionReason = "UnknownUser"
	ReasonStorageUnavailable  DecisionReason = "StorageUnavailable"
)

// AccessDecision is computed per request and never cached.
type AccessDecision struct {
	Allowed bool           `json:"allowed"`
	Reason  DecisionReason `json:"reason"`
	// Subscription that granted access, if any.
	Subscription *Subscription `json:"-"`
}

func Allow(r DecisionReason, s *Subscription) AccessDecision {
	return AccessDecision{Allowed: true, Reason: r, Subscription: s}
}

func Deny(r DecisionReason) AccessDecision { return AccessDecision{Reason: r} }
