package service

import (
	"context"
	"fmt"
	"strings"

	"souq/internal/domain"

	"go.uber.org/zap"
)

// uploadAll pushes 1-3 image payloads to the media store one at a time.
// Ordering matters for deterministic rollback: when an upload fails, only the
// images uploaded so far in this operation are released (best-effort, in
// reverse order) before the original error is returned. The caller never
// persists a partial image set.
func (s *catalogService) uploadAll(ctx context.Context, payloads []string) ([]domain.MediaRecord, error) {
	uploaded := make([]domain.MediaRecord, 0, len(payloads))

	for _, payload := range payloads {
		asset, err := s.media.Upload(ctx, payload, s.mediaFolder)
		if err != nil {
			s.rollbackUploads(ctx, uploaded)
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}

		uploaded = append(uploaded, domain.MediaRecord{
			URL:      asset.URL,
			FileID:   asset.FileID,
			PublicID: asset.FileID,
		})
	}

	return uploaded, nil
}

// rollbackUploads compensates for a failed multi-image operation by releasing
// this operation's own uploads in reverse order. Secondary failures are
// logged, never escalated.
func (s *catalogService) rollbackUploads(ctx context.Context, uploaded []domain.MediaRecord) {
	for i := len(uploaded) - 1; i >= 0; i-- {
		if uploaded[i].FileID == "" {
			continue
		}
		if err := s.media.Delete(ctx, uploaded[i].FileID); err != nil {
			s.logger.Error("Failed to clean up uploaded image after failure",
				zap.String("file_id", uploaded[i].FileID),
				zap.Error(err),
			)
		}
	}
}

// releaseImages frees the external-store resources of images that are no
// longer owned (removed on update, or all images on delete). Failures are
// logged and swallowed: the record-level operation has already logically
// succeeded, and media-store leakage is an accepted degradation.
func (s *catalogService) releaseImages(ctx context.Context, images []domain.MediaRecord) {
	for _, image := range images {
		if image.FileID == "" {
			continue
		}
		if err := s.media.Delete(ctx, image.FileID); err != nil {
			s.logger.Error("Failed to delete image from media store",
				zap.String("file_id", image.FileID),
				zap.Error(err),
			)
		}
	}
}

// partitionImages splits the currently stored images into the records the
// client kept and the records to release, comparing by derived identifier.
func partitionImages(current []domain.MediaRecord, keepIDs []string) (retained, removed []domain.MediaRecord) {
	keep := make(map[string]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}

	for _, image := range current {
		if keep[image.Identifier()] {
			retained = append(retained, image)
		} else {
			removed = append(removed, image)
		}
	}
	return retained, removed
}

// orderRetained returns the retained images in the client's requested order.
func orderRetained(retained []domain.MediaRecord, keepIDs []string) []domain.MediaRecord {
	lookup := make(map[string]domain.MediaRecord, len(retained))
	for _, image := range retained {
		lookup[image.Identifier()] = image
	}

	ordered := make([]domain.MediaRecord, 0, len(retained))
	for _, id := range keepIDs {
		if image, ok := lookup[id]; ok {
			ordered = append(ordered, image)
		}
	}
	return ordered
}

// arrangeImages settles the final image list after reconciliation. The first
// entry is the cover: a cover preference of "new" promotes the first new
// upload, otherwise the first retained image (in client order) keeps the spot,
// and new uploads follow. The displayed cover always reflects the most recent
// caller intent without losing previously retained images.
func arrangeImages(retained, uploaded []domain.MediaRecord, coverSource string) []domain.MediaRecord {
	source := strings.ToLower(coverSource)

	if source == "new" && len(uploaded) > 0 {
		final := make([]domain.MediaRecord, 0, len(retained)+len(uploaded))
		final = append(final, uploaded[0])
		final = append(final, retained...)
		final = append(final, uploaded[1:]...)
		return final
	}

	if len(retained) > 0 {
		final := make([]domain.MediaRecord, 0, len(retained)+len(uploaded))
		final = append(final, retained...)
		final = append(final, uploaded...)
		return final
	}

	return append([]domain.MediaRecord{}, uploaded...)
}
