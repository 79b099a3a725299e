package registry

import (
	"regexp"
	"strings"
)

// CheckSzEmpty matches string values with no data
func CheckSzEmpty(v Value) bool {
	return v.IsString() && v.String == ""
}

// CheckSzNotEmpty matches string values with data
func CheckSzNotEmpty(v Value) bool {
	return v.IsString() && v.String != ""
}

// AnyValue matches every value
func AnyValue(Value) bool { return true }

// CheckSzEqual matches string values equal to s, ignoring case
func CheckSzEqual(s string) Predicate {
	return func(v Value) bool {
		return v.IsString() && strings.EqualFold(v.String, s)
	}
}

// CheckSzRegexMatch matches string values the expression matches
func CheckSzRegexMatch(re *regexp.Regexp) Predicate {
	return func(v Value) bool {
		return v.IsString() && re.MatchString(v.String)
	}
}

// CheckDwordEqual matches DWORD values equal to n
func CheckDwordEqual(n uint32) Predicate {
	return func(v Value) bool {
		return v.Type == DWORD && v.Integer == uint64(n)
	}
}

// CheckMultiSzNotSubset matches REG_MULTI_SZ values holding an entry outside
// allowed (case-insensitive). Empty entries are ignored.
func CheckMultiSzNotSubset(allowed ...string) Predicate {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.ToLower(a)] = struct{}{}
	}
	return func(v Value) bool {
		if v.Type != MULTI_SZ {
			return false
		}
		for _, s := range v.Strings {
			if s == "" {
				continue
			}
			if _, ok := set[strings.ToLower(s)]; !ok {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate
func Not(p Predicate) Predicate {
	return func(v Value) bool { return !p(v) }
}
