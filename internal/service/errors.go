package service

import "errors"

var (
	ErrInvalidRepoURL  = errors.New("invalid repository url")
	ErrInvalidBranch   = errors.New("invalid branch name")
	ErrJobNotFound     = errors.New("job not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrFindingNotFound = errors.New("finding not found")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
