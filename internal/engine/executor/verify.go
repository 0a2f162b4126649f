package executor

import (
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// RestatAndVerify re-stats every produced item of every executed action,
// invalidating the FileItem cache for downstream steps, then checks that
// every Link-type action actually produced all of its declared outputs.
func RestatAndVerify(executed []*domain.LinkedAction) error {
	for _, la := range executed {
		for _, item := range la.ProducedItems {
			item.Reset()
		}
	}

	for _, la := range executed {
		if la.Type != domain.ActionLink {
			continue
		}
		for _, item := range la.ProducedItems {
			if !item.Exists() {
				return zerr.With(domain.ErrLinkOutputsMissing, "path", item.AbsPath)
			}
		}
	}

	return nil
}
