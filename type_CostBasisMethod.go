package cryptotax

import "fmt"

// CostBasisMethod defines the order in which open lots are consumed.
type CostBasisMethod int

const (
	// FIFO (First-In, First-Out) consumes the oldest lots first.
	FIFO CostBasisMethod = iota
	// LIFO (Last-In, First-Out) consumes the most recent lots first.
	LIFO
	// AverageCost treats all open lots as a single pool with a quantity
	// weighted average unit cost.
	AverageCost
)

func (m CostBasisMethod) String() string {
	switch m {
	case AverageCost:
		return "average"
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	default:
		return "unknown"
	}
}

// ParseCostBasisMethod parses a string into a CostBasisMethod.
func ParseCostBasisMethod(s string) (CostBasisMethod, error) {
	switch s {
	case "average":
		return AverageCost, nil
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	default:
		return 0, fmt.Errorf("unknown cost basis method: %q", s)
	}
}

func (m CostBasisMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CostBasisMethod) UnmarshalText(text []byte) (err error) {
	*m, err = ParseCostBasisMethod(string(text))
	return err
}
