package pipeline

import (
	"errors"
	"fmt"

	"github.com/example/face-identify/internal/faceapi"
)

// ErrUnknownFace is returned when the service identifies a face ID that was
// not part of the detection result.
var ErrUnknownFace = errors.New("identified face was not detected")

// IdentifiedFace is an identify result with the detection rectangle attached.
type IdentifiedFace struct {
	FaceID        string
	FaceRectangle faceapi.FaceRectangle
	Candidates    []faceapi.Candidate
}

// Partition splits items into consecutive chunks of at most size elements,
// keeping order. The last chunk may be shorter. A size below 1 is treated as 1.
func Partition[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// MergeRectangles attaches the detected rectangle to each identify result by
// face ID.
func MergeRectangles(results []faceapi.IdentifyResult, detected []faceapi.DetectedFace) ([]IdentifiedFace, error) {
	rects := make(map[string]faceapi.FaceRectangle, len(detected))
	for _, face := range detected {
		rects[face.FaceID] = face.FaceRectangle
	}

	merged := make([]IdentifiedFace, 0, len(results))
	for _, result := range results {
		rect, ok := rects[result.FaceID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFace, result.FaceID)
		}
		merged = append(merged, IdentifiedFace{
			FaceID:        result.FaceID,
			FaceRectangle: rect,
			Candidates:    result.Candidates,
		})
	}
	return merged, nil
}

// SelectBestCandidate returns the candidate with the highest confidence.
// On a tie the earliest candidate wins. ok is false iff there are no candidates.
func SelectBestCandidate(candidates []faceapi.Candidate) (best faceapi.Candidate, ok bool) {
	if len(candidates) == 0 {
		return faceapi.Candidate{}, false
	}
	best = candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best, true
}
