package checkout

import (
	"fmt"
	"math/rand"
	"regexp"
)

var orderCodePattern = regexp.MustCompile(`^MK-[1-9][0-9]{3}$`)

// NewOrderCode returns a human-facing reference of the form MK-1000 to MK-9999.
// Codes are not unique and are never used as lookup keys.
func NewOrderCode() string {
	return fmt.Sprintf("MK-%d", 1000+rand.Intn(9000))
}

// IsOrderCode reports whether code has the MK-#### shape.
func IsOrderCode(code string) bool {
	return orderCodePattern.MatchString(code)
}
