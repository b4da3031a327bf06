package errz

// Code represents a unique identifier for error types.
// Codes are organized by category:
//   - H1xxx: Allocation failures
//   - H2xxx: Configuration errors
//   - H3xxx: Type errors
//   - H4xxx: Contract violations
//   - H5xxx: Value and lookup errors
//   - H9xxx: System errors
type Code string

const (
	// Allocation failures (H1xxx)
	H1001 Code = "H1001" // Heap budget exhausted
	H1002 Code = "H1002" // Payload storage exhausted
	H1003 Code = "H1003" // Builder storage unavailable
	H1004 Code = "H1004" // Tracker storage unavailable

	// Configuration errors (H2xxx)
	H2001 Code = "H2001" // Invalid specification
	H2002 Code = "H2002" // Conflicting inheritance parameters
	H2003 Code = "H2003" // Conflicting layout strategy
	H2004 Code = "H2004" // GC participation without traversal
	H2005 Code = "H2005" // Implementation does not match signature
	H2006 Code = "H2006" // Duplicate definition

	// Type errors (H3xxx)
	H3001 Code = "H3001" // Type mismatch
	H3002 Code = "H3002" // Inheritance layout mismatch
	H3003 Code = "H3003" // Type not acceptable as base

	// Contract violations (H4xxx)
	H4001 Code = "H4001" // Contract violation
	H4002 Code = "H4002" // Inline handle used as reference
	H4003 Code = "H4003" // Handle used after close
	H4004 Code = "H4004" // Builder slot written twice
	H4005 Code = "H4005" // Builder finalized twice
	H4006 Code = "H4006" // Builder slot not written

	// Value and lookup errors (H5xxx)
	H5001 Code = "H5001" // Invalid value
	H5002 Code = "H5002" // Index out of range
	H5003 Code = "H5003" // Key not found
	H5004 Code = "H5004" // Attribute not found
	H5005 Code = "H5005" // Iteration stopped

	// System errors (H9xxx)
	H9001 Code = "H9001" // Internal error
	H9002 Code = "H9002" // Implementation returned null without an error
	H9003 Code = "H9003" // Implementation panicked
)

// codeDescriptions maps error codes to their short descriptions.
var codeDescriptions = map[Code]string{
	H1001: "heap budget exhausted",
	H1002: "payload storage exhausted",
	H1003: "builder storage unavailable",
	H1004: "tracker storage unavailable",

	H2001: "invalid specification",
	H2002: "conflicting inheritance parameters",
	H2003: "conflicting layout strategy",
	H2004: "gc participation without traversal",
	H2005: "implementation does not match signature",
	H2006: "duplicate definition",

	H3001: "type mismatch",
	H3002: "inheritance layout mismatch",
	H3003: "type not acceptable as base",

	H4001: "contract violation",
	H4002: "inline handle used as reference",
	H4003: "handle used after close",
	H4004: "builder slot written twice",
	H4005: "builder finalized twice",
	H4006: "builder slot not written",

	H5001: "invalid value",
	H5002: "index out of range",
	H5003: "key not found",
	H5004: "attribute not found",
	H5005: "iteration stopped",

	H9001: "internal error",
	H9002: "implementation returned null without an error",
	H9003: "implementation panicked",
}

// Description returns the short description for an error code.
func (c Code) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

// String returns the error code as a string.
func (c Code) String() string {
	return string(c)
}

// Category returns the error category based on the code prefix.
func (c Code) Category() string {
	if len(c) < 2 {
		return "unknown"
	}
	switch c[1] {
	case '1':
		return "allocation"
	case '2':
		return "configuration"
	case '3':
		return "type"
	case '4':
		return "contract"
	case '5':
		return "value"
	case '9':
		return "system"
	default:
		return "unknown"
	}
}
