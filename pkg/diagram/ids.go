package diagram

import "strconv"

// NextID returns the identifier for the next auto-assigned node: "0" for an
// empty sequence, otherwise one more than the largest numeric id.
//
// Ids that do not parse as base-10 integers (explicit ids such as "db" given
// to awi) do not take part in the maximum. A sequence holding only such ids
// therefore yields "0".
func NextID(nodes []Node) string {
	next := 0
	found := false
	for _, n := range nodes {
		v, err := strconv.Atoi(n.ID)
		if err != nil {
			continue
		}
		if !found || v+1 > next {
			next = v + 1
			found = true
		}
	}
	return strconv.Itoa(next)
}
