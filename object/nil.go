package object

// NoneValue is the type of the None singleton.
type NoneValue struct {
	Header
}

// None is the immortal None singleton.
var None = &NoneValue{Header: immortal()}

func (n *NoneValue) Type() *Type { return NoneType }

func (n *NoneValue) Inspect() string { return "None" }

func (n *NoneValue) String() string { return "None" }

func (n *NoneValue) Interface() any { return nil }

func (n *NoneValue) Equals(other Object) bool {
	_, ok := other.(*NoneValue)
	return ok
}
