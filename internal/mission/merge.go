package mission

// DeepMerge layers overlay onto base and returns a new tree. Neither input
// is mutated. Matching map nodes merge recursively; sequences and scalars
// are replaced wholesale. An explicit null in the overlay replaces the base
// value, which is how a variant disables a stage binding.
//
// Merge is deterministic: applying the same overlay twice yields the same
// tree as applying it once.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		bv, exists := out[k]
		if !exists {
			out[k] = v
			continue
		}
		bm, baseIsMap := bv.(map[string]any)
		om, overlayIsMap := v.(map[string]any)
		if baseIsMap && overlayIsMap {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = v
	}
	return out
}
