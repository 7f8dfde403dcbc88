package platform

import "context"

// DesignationSource resolves the designations currently allowed to
// approve a routed form. Resolved once per operation, never matched
// against hardcoded role strings at call sites.
type DesignationSource interface {
	ApprovalDesignations(ctx context.Context) ([]string, error)
}

// StaticDesignations serves the allow-list from configuration.
type StaticDesignations struct {
	List []string
}

func (s *StaticDesignations) ApprovalDesignations(context.Context) ([]string, error) {
	return s.List, nil
}
