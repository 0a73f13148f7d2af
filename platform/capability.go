package platform

// Capability is the automation profile of a platform.
type Capability struct {
	FullAuto     bool `json:"fullAuto" yaml:"full_auto"`
	SemiAuto     bool `json:"semiAuto" yaml:"semi_auto"`
	NeedsAgent   bool `json:"needsAgent" yaml:"needs_agent"`
	TrackingSync bool `json:"trackingSync" yaml:"tracking_sync"`
	APIDirect    bool `json:"apiDirect" yaml:"api_direct"`
}

// Tier is the dispatch path selected for an order.
type Tier string

const (
	TierNone  Tier = "none"
	TierFull  Tier = "full_auto"
	TierSemi  Tier = "semi_auto"
	TierAgent Tier = "agent_required"
)

var registry = map[ID]Capability{
	AliExpress:     {FullAuto: true, SemiAuto: true, TrackingSync: true},
	Amazon:         {FullAuto: true, SemiAuto: true, TrackingSync: true},
	EBay:           {SemiAuto: true, TrackingSync: true},
	Temu:           {SemiAuto: true},
	Banggood:       {SemiAuto: true, TrackingSync: true},
	Shein:          {SemiAuto: true},
	DHgate:         {SemiAuto: true},
	CJDropshipping: {SemiAuto: true, TrackingSync: true, APIDirect: true},
	Alibaba:        {NeedsAgent: true},
	Ali1688:        {NeedsAgent: true},
	Taobao:         {NeedsAgent: true},
}

// CapabilitiesOf returns the capability of id, or the zero Capability when
// id is not in the registry.
func CapabilitiesOf(id ID) Capability {
	return registry[id]
}

// Known reports whether id has a registry entry.
func Known(id ID) bool {
	_, ok := registry[id]
	return ok
}

// Tier selects the dispatch path. Full-auto always wins on a first dispatch;
// degraded asks for the semi-auto path and is honoured only when the
// platform supports it.
func (c Capability) Tier(degraded bool) Tier {
	switch {
	case degraded && c.SemiAuto:
		return TierSemi
	case c.FullAuto:
		return TierFull
	case c.SemiAuto:
		return TierSemi
	case c.NeedsAgent:
		return TierAgent
	default:
		return TierNone
	}
}

// Automatable reports whether any dispatch tier applies.
func (c Capability) Automatable() bool {
	return c.Tier(false) != TierNone
}
