package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Signature computes the canonical cache key for a filter request.
// Filters are sorted by column id, then operator, then value, so
// semantically identical requests in different literal order hash
// identically. The requester's visible column set is part of the key:
// two users with different column visibility never share a cache entry.
func Signature(tableID string, payload Payload, visibleColumns []string) string {
	filters := make([]FilterConfig, len(payload.Filters))
	copy(filters, payload.Filters)
	sort.Slice(filters, func(i, j int) bool {
		if filters[i].ColumnID != filters[j].ColumnID {
			return filters[i].ColumnID < filters[j].ColumnID
		}
		if filters[i].Operator != filters[j].Operator {
			return filters[i].Operator < filters[j].Operator
		}
		return fmt.Sprint(filters[i].Value) < fmt.Sprint(filters[j].Value)
	})

	visible := make([]string, len(visibleColumns))
	copy(visible, visibleColumns)
	sort.Strings(visible)

	h := xxhash.New()
	fmt.Fprintf(h, "table=%s;", tableID)
	for _, f := range filters {
		fmt.Fprintf(h, "f=%s|%s|%v|%v;", f.ColumnID, f.Operator, f.Value, f.SecondValue)
	}
	// Search matching is case-insensitive, so the key is too.
	fmt.Fprintf(h, "q=%s;", strings.ToLower(payload.GlobalSearch))
	fmt.Fprintf(h, "sort=%s|%s;", payload.SortBy, payload.SortOrder)
	fmt.Fprintf(h, "page=%d|%d;", payload.Page, payload.PageSize)
	fmt.Fprintf(h, "cols=%s", strings.Join(visible, ","))

	return fmt.Sprintf("%016x", h.Sum64())
}
