package faceapi

import (
	"context"
	"net/http"
)

// CreatePersonGroup creates groupID with a display name.
func (c *Client) CreatePersonGroup(ctx context.Context, groupID, name, userData string) error {
	_, err := c.do(ctx, "faceapi.create_person_group", http.MethodPut, path("persongroups", groupID), nil, jsonBody(namedRequest{Name: name, UserData: userData}))
	return err
}

// DeletePersonGroup removes groupID and all its persons.
func (c *Client) DeletePersonGroup(ctx context.Context, groupID string) error {
	_, err := c.do(ctx, "faceapi.delete_person_group", http.MethodDelete, path("persongroups", groupID), nil, nil)
	return err
}

// ListPersonGroups returns every person group of the subscription.
func (c *Client) ListPersonGroups(ctx context.Context) ([]PersonGroup, error) {
	groups, err := doJSON[[]PersonGroup](ctx, c, "faceapi.list_person_groups", http.MethodGet, "persongroups", nil, nil)
	if err != nil {
		return nil, err
	}
	return *groups, nil
}

// TrainPersonGroup queues a training run. Identification against the group
// only reflects enrolled faces after training succeeds.
func (c *Client) TrainPersonGroup(ctx context.Context, groupID string) error {
	_, err := c.do(ctx, "faceapi.train_person_group", http.MethodPost, path("persongroups", groupID, "train"), nil, nil)
	return err
}

// GetTrainingStatus reports the latest training run of groupID.
func (c *Client) GetTrainingStatus(ctx context.Context, groupID string) (*TrainingStatus, error) {
	return doJSON[TrainingStatus](ctx, c, "faceapi.get_training_status", http.MethodGet, path("persongroups", groupID, "training"), nil, nil)
}

// CreatePerson adds a person to groupID and returns the new person ID.
func (c *Client) CreatePerson(ctx context.Context, groupID, name, userData string) (string, error) {
	person, err := doJSON[Person](ctx, c, "faceapi.create_person", http.MethodPost, path("persongroups", groupID, "persons"), nil, jsonBody(namedRequest{Name: name, UserData: userData}))
	if err != nil {
		return "", err
	}
	return person.PersonID, nil
}

// ListPersons returns the persons enrolled in groupID.
func (c *Client) ListPersons(ctx context.Context, groupID string) ([]Person, error) {
	persons, err := doJSON[[]Person](ctx, c, "faceapi.list_persons", http.MethodGet, path("persongroups", groupID, "persons"), nil, nil)
	if err != nil {
		return nil, err
	}
	return *persons, nil
}

// DeletePerson removes a person and its persisted faces.
func (c *Client) DeletePerson(ctx context.Context, groupID, personID string) error {
	_, err := c.do(ctx, "faceapi.delete_person", http.MethodDelete, path("persongroups", groupID, "persons", personID), nil, nil)
	return err
}

// AddPersonFace registers the single face in image against a person.
func (c *Client) AddPersonFace(ctx context.Context, groupID, personID string, image []byte) (string, error) {
	face, err := doJSON[PersistedFace](ctx, c, "faceapi.add_person_face", http.MethodPost, path("persongroups", groupID, "persons", personID, "persistedFaces"), nil, octetStream(image))
	if err != nil {
		return "", err
	}
	return face.PersistedFaceID, nil
}

// CreateFaceList creates an empty face list.
func (c *Client) CreateFaceList(ctx context.Context, listID, name, userData string) error {
	_, err := c.do(ctx, "faceapi.create_face_list", http.MethodPut, path("facelists", listID), nil, jsonBody(namedRequest{Name: name, UserData: userData}))
	return err
}

// DeleteFaceList removes a face list and its faces.
func (c *Client) DeleteFaceList(ctx context.Context, listID string) error {
	_, err := c.do(ctx, "faceapi.delete_face_list", http.MethodDelete, path("facelists", listID), nil, nil)
	return err
}

// ListFaceLists returns every face list of the subscription.
func (c *Client) ListFaceLists(ctx context.Context) ([]FaceList, error) {
	lists, err := doJSON[[]FaceList](ctx, c, "faceapi.list_face_lists", http.MethodGet, "facelists", nil, nil)
	if err != nil {
		return nil, err
	}
	return *lists, nil
}

// AddFaceListFace registers the face in image with a face list.
func (c *Client) AddFaceListFace(ctx context.Context, listID string, image []byte) (string, error) {
	face, err := doJSON[PersistedFace](ctx, c, "faceapi.add_face_list_face", http.MethodPost, path("facelists", listID, "persistedFaces"), nil, octetStream(image))
	if err != nil {
		return "", err
	}
	return face.PersistedFaceID, nil
}
