// Package pipeline turns detected faces into identified people: it batches
// face IDs for the identify call, keeps the best candidate per face, and maps
// person names to external IDs.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/face-identify/internal/faceapi"
	"github.com/example/face-identify/internal/logging"
)

// Identifier issues one identify call for a batch of face IDs.
type Identifier interface {
	Identify(ctx context.Context, faceIDs []string, groupID string) ([]faceapi.IdentifyResult, error)
}

// NameResolver turns a person ID into its display name.
type NameResolver interface {
	PersonName(ctx context.Context, groupID, personID string) (string, error)
}

// IdentityResolver maps a display name to an external ID.
type IdentityResolver interface {
	Resolve(name string) (string, bool)
}

// ResolvedFace is a face whose best candidate has been named.
type ResolvedFace struct {
	FaceID        string
	FaceRectangle faceapi.FaceRectangle
	PersonID      string
	PersonName    string
	Confidence    float64
}

// Match is one element of the identification response. ExternalID is nil
// only when unresolved faces are included.
type Match struct {
	PersonName    string                `json:"personName"`
	FaceRectangle faceapi.FaceRectangle `json:"faceRectangle"`
	ExternalID    *string               `json:"externalId"`
}

// Report is the outcome of one pipeline run.
type Report struct {
	Matches    []Match
	Faces      int // detected faces submitted
	Candidates int // faces with at least one candidate
	Unresolved int // named faces without an external ID
}

// Options tune batching and the unresolved identity policy.
type Options struct {
	BatchSize         int
	Concurrency       int
	IncludeUnresolved bool
}

// Pipeline is safe for concurrent use if its collaborators are.
type Pipeline struct {
	identifier Identifier
	names      NameResolver
	identities IdentityResolver
	opts       Options
	logger     *zap.Logger
}

// New builds a pipeline. BatchSize is clamped to faceapi.MaxIdentifyFaces and
// Concurrency defaults to 1.
func New(identifier Identifier, names NameResolver, identities IdentityResolver, opts Options, logger *zap.Logger) *Pipeline {
	if opts.BatchSize < 1 || opts.BatchSize > faceapi.MaxIdentifyFaces {
		opts.BatchSize = faceapi.MaxIdentifyFaces
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		identifier: identifier,
		names:      names,
		identities: identities,
		opts:       opts,
		logger:     logger.Named("pipeline"),
	}
}

// Run identifies faces against groupID. Any service failure aborts the run;
// no partial report is returned.
func (p *Pipeline) Run(ctx context.Context, requestID string, faces []faceapi.DetectedFace, groupID string) (*Report, error) {
	opLogger := logging.WithOperation(p.logger, "pipeline.run", requestID)
	report := &Report{Matches: []Match{}, Faces: len(faces)}
	if len(faces) == 0 {
		return report, nil
	}

	results, err := p.identifyAll(ctx, requestID, faces, groupID)
	if err != nil {
		return nil, err
	}

	identified, err := MergeRectangles(results, faces)
	if err != nil {
		return nil, logging.NewOperationError("pipeline.merge_rectangles", requestID, err)
	}

	resolved, err := p.resolveNames(ctx, requestID, identified, groupID)
	if err != nil {
		return nil, err
	}
	report.Candidates = len(resolved)

	for _, face := range resolved {
		externalID, ok := p.identities.Resolve(face.PersonName)
		if !ok {
			report.Unresolved++
			opLogger.Info("recognized person has no external identity",
				zap.String("person_id", face.PersonID),
				zap.String("person_name", face.PersonName),
				zap.Bool("included", p.opts.IncludeUnresolved),
			)
			if !p.opts.IncludeUnresolved {
				continue
			}
			report.Matches = append(report.Matches, Match{PersonName: face.PersonName, FaceRectangle: face.FaceRectangle})
			continue
		}
		report.Matches = append(report.Matches, Match{
			PersonName:    face.PersonName,
			FaceRectangle: face.FaceRectangle,
			ExternalID:    &externalID,
		})
	}

	opLogger.Debug("pipeline finished",
		zap.Int("faces", report.Faces),
		zap.Int("candidates", report.Candidates),
		zap.Int("matches", len(report.Matches)),
	)
	return report, nil
}

// identifyAll runs one identify call per batch and concatenates the results
// in batch order.
func (p *Pipeline) identifyAll(ctx context.Context, requestID string, faces []faceapi.DetectedFace, groupID string) ([]faceapi.IdentifyResult, error) {
	batches := Partition(faces, p.opts.BatchSize)
	perBatch := make([][]faceapi.IdentifyResult, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			ids := make([]string, len(batch))
			for j, face := range batch {
				ids[j] = face.FaceID
			}
			results, err := p.identifier.Identify(gctx, ids, groupID)
			if err != nil {
				return logging.NewOperationError("pipeline.identify_batch", requestID, fmt.Errorf("batch %d: %w", i, err))
			}
			perBatch[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []faceapi.IdentifyResult
	for _, results := range perBatch {
		all = append(all, results...)
	}
	return all, nil
}

// resolveNames keeps faces with a best candidate and looks up each distinct
// person once.
func (p *Pipeline) resolveNames(ctx context.Context, requestID string, faces []IdentifiedFace, groupID string) ([]ResolvedFace, error) {
	names := make(map[string]string)
	resolved := make([]ResolvedFace, 0, len(faces))
	for _, face := range faces {
		best, ok := SelectBestCandidate(face.Candidates)
		if !ok {
			continue
		}
		name, seen := names[best.PersonID]
		if !seen {
			var err error
			name, err = p.names.PersonName(ctx, groupID, best.PersonID)
			if err != nil {
				return nil, logging.NewOperationError("pipeline.resolve_name", requestID, err)
			}
			names[best.PersonID] = name
		}
		resolved = append(resolved, ResolvedFace{
			FaceID:        face.FaceID,
			FaceRectangle: face.FaceRectangle,
			PersonID:      best.PersonID,
			PersonName:    name,
			Confidence:    best.Confidence,
		})
	}
	return resolved, nil
}

// PersonGetter is the person lookup of the face service.
type PersonGetter interface {
	GetPerson(ctx context.Context, groupID, personID string) (*faceapi.Person, error)
}

// ServiceNames resolves names with a direct person lookup.
type ServiceNames struct {
	Getter PersonGetter
}

// PersonName implements NameResolver.
func (s ServiceNames) PersonName(ctx context.Context, groupID, personID string) (string, error) {
	person, err := s.Getter.GetPerson(ctx, groupID, personID)
	if err != nil {
		return "", err
	}
	return person.Name, nil
}
