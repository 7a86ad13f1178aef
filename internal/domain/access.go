package domain

import (
	"encoding/json"
	"sort"
)

// Resource identifies a category of principal-owned data that co-managers can
// be granted access to. Profile and earnings data are deliberately absent.
type Resource string

const (
	ResourceLaalas         Resource = "laalas"
	ResourceContenus       Resource = "contenus"
	ResourceCommunications Resource = "communications"
	ResourceCampaigns      Resource = "campaigns"
)

// Resources lists every grantable resource in display order.
func Resources() []Resource {
	return []Resource{ResourceLaalas, ResourceContenus, ResourceCommunications, ResourceCampaigns}
}

// ParseResource validates a resource name coming from outside the process.
func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	switch r {
	case ResourceLaalas, ResourceContenus, ResourceCommunications, ResourceCampaigns:
		return r, nil
	}
	return "", ErrValidation("unknown resource %q", s)
}

// Action is one of the CRUD verbs granted per resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every action in CRUD order.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

// ParseAction validates an action name coming from outside the process.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", ErrValidation("unknown action %q", s)
}

// ResourcePermission is the wire form of one resource grant.
type ResourcePermission struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

// Permissions maps a resource to the set of actions allowed on it.
type Permissions map[Resource]map[Action]bool

// ParsePermissions converts the wire form into a validated Permissions value.
// Duplicate resources are merged. Entries with no actions are dropped.
func ParsePermissions(in []ResourcePermission) (Permissions, error) {
	out := Permissions{}
	for _, rp := range in {
		res, err := ParseResource(rp.Resource)
		if err != nil {
			return nil, err
		}
		for _, raw := range rp.Actions {
			act, err := ParseAction(raw)
			if err != nil {
				return nil, ErrValidation("permissions.%s: %s", res, err.Error())
			}
			out.Grant(res, act)
		}
	}
	return out, nil
}

// Grant adds action to the resource's allowed set.
func (p Permissions) Grant(r Resource, a Action) {
	set, ok := p[r]
	if !ok {
		set = map[Action]bool{}
		p[r] = set
	}
	set[a] = true
}

// Allows reports whether action is granted on resource. A missing resource
// key is an empty set.
func (p Permissions) Allows(r Resource, a Action) bool {
	return p[r][a]
}

// Empty reports whether no action is granted on any resource.
func (p Permissions) Empty() bool {
	for _, set := range p {
		for _, granted := range set {
			if granted {
				return false
			}
		}
	}
	return true
}

// List returns the wire form, sorted by resource then CRUD order.
func (p Permissions) List() []ResourcePermission {
	out := make([]ResourcePermission, 0, len(p))
	for _, r := range Resources() {
		set := p[r]
		if len(set) == 0 {
			continue
		}
		rp := ResourcePermission{Resource: string(r)}
		for _, a := range Actions() {
			if set[a] {
				rp.Actions = append(rp.Actions, string(a))
			}
		}
		if len(rp.Actions) > 0 {
			out = append(out, rp)
		}
	}
	return out
}

// Clone returns a deep copy.
func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for r, set := range p {
		for a, granted := range set {
			if granted {
				out.Grant(r, a)
			}
		}
	}
	return out
}

// MarshalJSON encodes as {"laalas": ["read", ...]} with stable ordering.
func (p Permissions) MarshalJSON() ([]byte, error) {
	m := make(map[string][]string, len(p))
	for _, rp := range p.List() {
		m[rp.Resource] = rp.Actions
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the map form produced by MarshalJSON, validating
// every resource and action.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	in := make([]ResourcePermission, 0, len(m))
	for _, k := range keys {
		in = append(in, ResourcePermission{Resource: k, Actions: m[k]})
	}
	parsed, err := ParsePermissions(in)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// DataFilter scopes store queries to one principal's data.
type DataFilter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// OwnerField is the document attribute carrying the owning principal id.
const OwnerField = "idCreateur"

// OwnerFilter returns the filter selecting documents owned by principalID.
func OwnerFilter(principalID string) DataFilter {
	return DataFilter{Field: OwnerField, Value: principalID}
}
