package dto

import "github.com/tnqbao/gau-platform/entity"

type ListFilesQueryDTO struct {
	Prefix string `form:"prefix" binding:"omitempty,max=1024"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type ListFilesResponseDTO struct {
	Files  []entity.File `json:"files"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}
