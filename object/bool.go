package object

type Bool struct {
	Header
	value bool
}

var (
	True  = &Bool{Header: immortal(), value: true}
	False = &Bool{Header: immortal(), value: false}
)

// NewBool returns one of the two immortal Bool singletons.
func NewBool(value bool) *Bool {
	if value {
		return True
	}
	return False
}

func (b *Bool) Type() *Type { return BoolType }

func (b *Bool) Value() bool { return b.value }

func (b *Bool) Inspect() string {
	if b.value {
		return "True"
	}
	return "False"
}

func (b *Bool) String() string { return b.Inspect() }

func (b *Bool) Interface() any { return b.value }

func (b *Bool) Equals(other Object) bool {
	o, ok := other.(*Bool)
	return ok && o.value == b.value
}
