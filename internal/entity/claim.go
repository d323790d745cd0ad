package entity

// Claim is a typed statement about a user. Two claims denote the same
// claim iff both type and value match.
type Claim struct {
	Type  string
	Value string
}

func (c Claim) String() string {
	return c.Type + ": " + c.Value
}
