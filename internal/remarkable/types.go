package remarkable

// Item type discriminators used by the storage API.
const (
	ItemTypeDocument   = "DocumentType"
	ItemTypeCollection = "CollectionType"
)

// Item is the storage API's representation of a document or folder.
// VissibleName is the API's own field spelling.
type Item struct {
	ID             string `json:"ID" db:"id"`
	Version        int    `json:"Version" db:"version"`
	Type           string `json:"Type" db:"type"`
	VissibleName   string `json:"VissibleName" db:"name"`
	Parent         string `json:"Parent" db:"parent"`
	ModifiedClient string `json:"ModifiedClient,omitempty" db:"modified_client"`
}

// uploadRequest asks the storage API for a pre-signed blob URL.
type uploadRequest struct {
	ID      string `json:"ID"`
	Type    string `json:"Type"`
	Version int    `json:"Version"`
}

// uploadResponse is one entry of the upload/request reply.
type uploadResponse struct {
	ID         string `json:"ID"`
	Version    int    `json:"Version"`
	Message    string `json:"Message"`
	Success    bool   `json:"Success"`
	BlobURLPut string `json:"BlobURLPut"`
}

// statusUpdate finalizes an uploaded item's metadata.
type statusUpdate struct {
	ID             string `json:"ID"`
	Parent         string `json:"Parent"`
	VissibleName   string `json:"VissibleName"`
	Type           string `json:"Type"`
	Version        int    `json:"Version"`
	ModifiedClient string `json:"ModifiedClient"`
}

// statusResponse is one entry of the update-status reply.
type statusResponse struct {
	ID      string `json:"ID"`
	Message string `json:"Message"`
	Success bool   `json:"Success"`
}

// discoveryResponse is the service discovery reply.
type discoveryResponse struct {
	Status string `json:"Status"`
	Host   string `json:"Host"`
}
