package mocks

//go:generate mockery --name Dataset --srcpkg github.com/aevon-lab/classgroup/internal/core/storage --output ./storage --outpkg storagemocks
