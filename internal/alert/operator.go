package alert

import "codeberg.org/mutker/nvidiawatch/internal/errors"

// Operator is the relational operator applied against a condition's threshold.
type Operator uint8

const (
	LT Operator = iota
	LE
	EQ
	GT
	GE
)

var operatorSymbols = [...]string{
	LT: "<",
	LE: "<=",
	EQ: "=",
	GT: ">",
	GE: ">=",
}

func (o Operator) String() string {
	if int(o) < len(operatorSymbols) {
		return operatorSymbols[o]
	}
	return "?"
}

// Compare applies the operator to value and threshold.
func (o Operator) Compare(value, threshold int64) bool {
	switch o {
	case LT:
		return value < threshold
	case LE:
		return value <= threshold
	case GT:
		return value > threshold
	case GE:
		return value >= threshold
	default:
		return value == threshold
	}
}

// ParseOperator accepts the rendered symbols plus "==".
func ParseOperator(symbol string) (Operator, error) {
	switch symbol {
	case "<":
		return LT, nil
	case "<=":
		return LE, nil
	case "=", "==":
		return EQ, nil
	case ">":
		return GT, nil
	case ">=":
		return GE, nil
	default:
		return EQ, errors.New().WithData(ErrInvalidOperator, symbol)
	}
}
