package domain

// Compact drops zero ids and duplicates while keeping first-seen order.
// Zero never names a real row, so it stands in for a missing id.
func Compact(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Union appends the ids from add that are not already in existing.
// Existing order is preserved and new ids follow in the order given.
func Union(existing, add []int64) []int64 {
	out := Compact(existing)
	seen := make(map[int64]struct{}, len(out)+len(add))
	for _, id := range out {
		seen[id] = struct{}{}
	}
	for _, id := range add {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Difference returns existing without any id present in remove.
func Difference(existing, remove []int64) []int64 {
	drop := make(map[int64]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]int64, 0, len(existing))
	for _, id := range existing {
		if _, gone := drop[id]; gone {
			continue
		}
		out = append(out, id)
	}
	return out
}
