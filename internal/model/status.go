package model

// canTransition 校验状态机是否允许 from -> to
func canTransition(table map[string][]string, from, to string) bool {
	allowed, exists := table[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
