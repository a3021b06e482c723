// Package faceapi is a client for the Face API v1.0 REST surface: detection,
// identification against a person group, and the administrative calls used
// to enroll people.
package faceapi

import "context"

// MaxIdentifyFaces is the per-call face ID limit of the identify endpoint.
const MaxIdentifyFaces = 10

// FaceRectangle locates a face in the source image, in pixels.
type FaceRectangle struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectedFace is one entry of the detect response. FaceID expires on the
// service side shortly after detection.
type DetectedFace struct {
	FaceID        string        `json:"faceId"`
	FaceRectangle FaceRectangle `json:"faceRectangle"`
}

// Candidate is a possible identity for a face.
type Candidate struct {
	PersonID   string  `json:"personId"`
	Confidence float64 `json:"confidence"`
}

// IdentifyResult holds the candidates returned for one face ID. Candidates
// is empty when nothing in the group matched.
type IdentifyResult struct {
	FaceID     string      `json:"faceId"`
	Candidates []Candidate `json:"candidates"`
}

// Person is an enrolled individual of a person group.
type Person struct {
	PersonID         string   `json:"personId"`
	Name             string   `json:"name"`
	UserData         string   `json:"userData,omitempty"`
	PersistedFaceIDs []string `json:"persistedFaceIds,omitempty"`
}

// PersonGroup is a named collection of persons used for identification.
type PersonGroup struct {
	PersonGroupID string `json:"personGroupId"`
	Name          string `json:"name"`
	UserData      string `json:"userData,omitempty"`
}

// FaceList is a named collection of persisted faces.
type FaceList struct {
	FaceListID     string          `json:"faceListId"`
	Name           string          `json:"name"`
	UserData       string          `json:"userData,omitempty"`
	PersistedFaces []PersistedFace `json:"persistedFaces,omitempty"`
}

// PersistedFace is a face image registered against a person or face list.
type PersistedFace struct {
	PersistedFaceID string `json:"persistedFaceId"`
	UserData        string `json:"userData,omitempty"`
}

// TrainingStatus reports the state of a person group training run.
type TrainingStatus struct {
	Status             string `json:"status"`
	CreatedDateTime    string `json:"createdDateTime"`
	LastActionDateTime string `json:"lastActionDateTime"`
	Message            string `json:"message,omitempty"`
}

// Recognizer is the subset of the service the identification pipeline uses.
type Recognizer interface {
	Detect(ctx context.Context, image []byte) ([]DetectedFace, error)
	Identify(ctx context.Context, faceIDs []string, groupID string) ([]IdentifyResult, error)
	GetPerson(ctx context.Context, groupID, personID string) (*Person, error)
}

type identifyRequest struct {
	PersonGroupID              string   `json:"personGroupId"`
	FaceIDs                    []string `json:"faceIds"`
	MaxNumOfCandidatesReturned int      `json:"maxNumOfCandidatesReturned,omitempty"`
	ConfidenceThreshold        float64  `json:"confidenceThreshold,omitempty"`
}

type namedRequest struct {
	Name     string `json:"name"`
	UserData string `json:"userData,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
