package netrefs

import (
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

var (
	phoneRails    = []string{"PP_VDD_MAIN", "PPVDD_MAIN", "PP_BATT", "PPBATT", "PPVBAT", "PP_VBAT", "PPVBUS", "VBUS"}
	laptopRails   = []string{"PPVBAT", "PPDCIN", "PPBUS", "PPBUS_S5"}
	fallbackRails = []string{"CHARGER_IN", "VBUS", "ADP_", "DCIN", "VIN", "VCC", "VDD", "ALW", "BATT"}
)

func firstWithPrefix(sorted []string, prefixes []string) string {
	for _, p := range prefixes {
		for _, n := range sorted {
			if strings.HasPrefix(n, p) {
				return n
			}
		}
	}
	return ""
}

// PrimaryRail guesses the main power rail of a board, the first net worth
// measuring on a dead board. family is a device family such as "iPhone" and
// may be empty. It returns "" when no candidate is present.
func PrimaryRail(nets model.NetSet, family string) string {
	sorted := nets.Sorted()
	if strings.EqualFold(family, "iphone") {
		if n := firstWithPrefix(sorted, phoneRails); n != "" {
			return n
		}
	}
	if nets.Has("PPBUS_AON") {
		return "PPBUS_AON"
	}
	if n := firstWithPrefix(sorted, []string{"PPBUS_G3H"}); n != "" {
		return n
	}
	if n := firstWithPrefix(sorted, laptopRails); n != "" {
		return n
	}
	return firstWithPrefix(sorted, fallbackRails)
}
