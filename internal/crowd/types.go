package crowd

// PrincipalKind distinguishes the two principal types the backend knows.
type PrincipalKind string

const (
	KindUser  PrincipalKind = "user"
	KindGroup PrincipalKind = "group"
)

// User is a backend user record, fetched on demand and never cached across
// requests. Attributes carries any additional backend attributes as an LDAP
// attribute-name → ordered-values multimap.
type User struct {
	Name        string
	FirstName   string
	LastName    string
	DisplayName string
	Email       string
	Active      bool
	Attributes  map[string][]string
}

// Group is a backend group record. Members holds the names of direct user
// members, Subgroups the names of direct child groups.
type Group struct {
	Name        string
	Description string
	Active      bool
	Members     []string
	Subgroups   []string
	Attributes  map[string][]string
}

// Wire representations of the backend's usermanagement REST resource.

type userDTO struct {
	Name        string        `json:"name"`
	FirstName   string        `json:"first-name"`
	LastName    string        `json:"last-name"`
	DisplayName string        `json:"display-name"`
	Email       string        `json:"email"`
	Active      bool          `json:"active"`
	Attributes  attributesDTO `json:"attributes"`
}

type groupDTO struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Active      bool          `json:"active"`
	Attributes  attributesDTO `json:"attributes"`
}

type attributesDTO struct {
	Attributes []attributeDTO `json:"attributes"`
}

type attributeDTO struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type userListDTO struct {
	Users []userDTO `json:"users"`
}

type groupListDTO struct {
	Groups []groupDTO `json:"groups"`
}

type nameListDTO struct {
	Users  []nameDTO `json:"users"`
	Groups []nameDTO `json:"groups"`
}

type nameDTO struct {
	Name string `json:"name"`
}

type passwordDTO struct {
	Value string `json:"value"`
}

type errorDTO struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (d userDTO) toUser() User {
	return User{
		Name:        d.Name,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		DisplayName: d.DisplayName,
		Email:       d.Email,
		Active:      d.Active,
		Attributes:  d.Attributes.toMap(),
	}
}

func (d groupDTO) toGroup() Group {
	return Group{
		Name:        d.Name,
		Description: d.Description,
		Active:      d.Active,
		Attributes:  d.Attributes.toMap(),
	}
}

func (d attributesDTO) toMap() map[string][]string {
	if len(d.Attributes) == 0 {
		return nil
	}
	m := make(map[string][]string, len(d.Attributes))
	for _, attr := range d.Attributes {
		m[attr.Name] = attr.Values
	}
	return m
}
