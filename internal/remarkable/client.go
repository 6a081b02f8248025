package remarkable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shano/email-to-remarkable-sync/internal/sync"
)

// Default production endpoints. The hosts can be overridden through
// Config for tests and self-hosted API replacements.
const (
	defaultAuthHost      = "https://webapp-prod.cloud.remarkable.engineering"
	defaultDiscoveryHost = "https://service-manager-production-dot-remarkable-production.appspot.com"

	newUserTokenPath     = "/token/json/2/user/new"
	storageDiscoveryPath = "/service/json/1/document-storage" +
		"?environment=production&group=auth0%7C5a68dc51cb30df3877a1d7c4&apiVer=2"
	docsPath          = "/document-storage/json/2/docs"
	uploadRequestPath = "/document-storage/json/2/upload/request"
	updateStatusPath  = "/document-storage/json/2/upload/update-status"
)

// Config holds the client's connection settings.
type Config struct {
	// DeviceToken is the long-lived device registration token.
	DeviceToken string

	// AuthHost overrides the token API base URL. Empty means production.
	AuthHost string

	// DiscoveryHost overrides the service discovery base URL. Empty
	// means production.
	DiscoveryHost string

	// SyncFilePath is where the client keeps its item-tree snapshot.
	SyncFilePath string
}

// Client is a thin HTTP client for the reMarkable cloud document
// storage API (json/2). It authenticates with a device token, keeps
// the remote item tree in memory for the run, and mirrors that tree
// into a local sync-state file.
type Client struct {
	authHost      string
	discoveryHost string
	storageHost   string
	deviceToken   string
	userToken     string
	httpClient    *http.Client
	log           *zap.Logger
	state         *StateFile
	items         []Item
}

// NewClient creates a client and opens its sync-state file. The
// caller must Close the client to release it.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	authHost := cfg.AuthHost
	if authHost == "" {
		authHost = defaultAuthHost
	}
	discoveryHost := cfg.DiscoveryHost
	if discoveryHost == "" {
		discoveryHost = defaultDiscoveryHost
	}

	state, err := OpenStateFile(cfg.SyncFilePath)
	if err != nil {
		return nil, fmt.Errorf("opening sync state file %s: %w", cfg.SyncFilePath, err)
	}

	return &Client{
		authHost:      strings.TrimRight(authHost, "/"),
		discoveryHost: strings.TrimRight(discoveryHost, "/"),
		deviceToken:   cfg.DeviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:   log,
		state: state,
	}, nil
}

// Close releases the sync-state file.
func (c *Client) Close() error {
	if c.state == nil {
		return nil
	}
	err := c.state.Close()
	c.state = nil
	return err
}

// Authenticate exchanges the device token for a user token, resolves
// the storage host through service discovery, and loads the remote
// item tree.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.newUserToken(ctx)
	if err != nil {
		return err
	}
	c.userToken = token

	host, err := c.discoverStorageHost(ctx)
	if err != nil {
		return err
	}
	c.storageHost = host

	if err := c.refreshTree(ctx); err != nil {
		return err
	}

	c.log.Info("storage session opened",
		zap.String("storage_host", c.storageHost),
		zap.Int("remote_items", len(c.items)),
	)
	return nil
}

// EnsureFolder returns the collection with the given visible name,
// creating it when no exact match exists. Matching is case-sensitive.
func (c *Client) EnsureFolder(ctx context.Context, name string) (sync.FolderRef, error) {
	for _, it := range c.items {
		if it.Type == ItemTypeCollection && it.VissibleName == name {
			return sync.FolderRef{ID: it.ID, Name: name}, nil
		}
	}

	id := uuid.NewString()
	archive, err := buildFolderArchive(id)
	if err != nil {
		return sync.FolderRef{}, err
	}

	item := Item{
		ID:           id,
		Version:      1,
		Type:         ItemTypeCollection,
		VissibleName: name,
	}
	if err := c.uploadArchive(ctx, item, archive); err != nil {
		return sync.FolderRef{}, fmt.Errorf("creating folder %q: %w", name, err)
	}

	c.items = append(c.items, item)
	c.snapshot(ctx)

	c.log.Info("folder created", zap.String("name", name), zap.String("id", id))
	return sync.FolderRef{ID: id, Name: name}, nil
}

// Upload stores the file at localPath as a new document in the given
// folder. The visible name is the base filename without its extension.
func (c *Client) Upload(
	ctx context.Context, localPath string, folder sync.FolderRef,
) (sync.UploadReceipt, error) {
	base := filepath.Base(localPath)

	data, err := os.ReadFile(localPath)
	if err != nil {
		return sync.UploadReceipt{}, &sync.UploadError{Filename: base, Err: err}
	}

	name := strings.TrimSuffix(base, filepath.Ext(base))

	id := uuid.NewString()
	archive, err := buildDocumentArchive(id, data)
	if err != nil {
		return sync.UploadReceipt{}, &sync.UploadError{Filename: base, Err: err}
	}

	item := Item{
		ID:           id,
		Version:      1,
		Type:         ItemTypeDocument,
		VissibleName: name,
		Parent:       folder.ID,
	}
	if err := c.uploadArchive(ctx, item, archive); err != nil {
		return sync.UploadReceipt{}, &sync.UploadError{Filename: base, Err: err}
	}

	c.items = append(c.items, item)
	c.snapshot(ctx)

	c.log.Info("document uploaded",
		zap.String("name", name),
		zap.String("id", id),
		zap.String("folder", folder.Name),
		zap.Int("bytes", len(data)),
	)
	return sync.UploadReceipt{DocumentID: id, Name: name}, nil
}

// newUserToken trades the device token for a user token. The token
// endpoint replies with the bare token as plain text.
func (c *Client) newUserToken(ctx context.Context) (string, error) {
	url := c.authHost + newUserTokenPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.deviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &sync.ConnectionError{
			Service: sync.ServiceRemarkable,
			Addr:    c.authHost,
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", &sync.AuthError{
			Service: sync.ServiceRemarkable,
			Message: "device token rejected; re-register the device",
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"unexpected status %d requesting user token: %s",
			resp.StatusCode, string(body),
		)
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}
	return token, nil
}

// discoverStorageHost asks service discovery where document storage
// lives. The production reply carries a bare hostname; replies that
// already carry a scheme are used as-is.
func (c *Client) discoverStorageHost(ctx context.Context) (string, error) {
	var disco discoveryResponse
	err := c.do(ctx, http.MethodGet, c.discoveryHost+storageDiscoveryPath, "", nil, &disco)
	if err != nil {
		return "", fmt.Errorf("discovering storage host: %w", err)
	}

	if disco.Status != "OK" {
		return "", fmt.Errorf("storage discovery refused: %q", disco.Status)
	}

	host := disco.Host
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/"), nil
}

// refreshTree reloads the remote item listing and snapshots it.
func (c *Client) refreshTree(ctx context.Context) error {
	var items []Item
	err := c.do(ctx, http.MethodGet, c.storageHost+docsPath, c.userToken, nil, &items)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	c.items = items
	c.snapshot(ctx)
	return nil
}

// snapshot persists the in-memory tree to the sync-state file. The
// snapshot is operational bookkeeping, never an input to sync
// decisions, so failures only log.
func (c *Client) snapshot(ctx context.Context) {
	if c.state == nil {
		return
	}
	if err := c.state.ReplaceSnapshot(ctx, c.items); err != nil {
		c.log.Warn("sync state snapshot failed", zap.Error(err))
	}
}

// uploadArchive runs the storage API's three-step upload: request a
// pre-signed blob URL, put the archive there, then finalize the
// item's metadata.
func (c *Client) uploadArchive(ctx context.Context, item Item, archive []byte) error {
	request := []uploadRequest{{
		ID:      item.ID,
		Type:    item.Type,
		Version: item.Version,
	}}

	var responses []uploadResponse
	err := c.do(ctx, http.MethodPut, c.storageHost+uploadRequestPath, c.userToken, request, &responses)
	if err != nil {
		return fmt.Errorf("requesting upload: %w", err)
	}
	if len(responses) == 0 {
		return fmt.Errorf("upload request returned no entries")
	}
	if !responses[0].Success {
		return fmt.Errorf("upload request refused: %s", responses[0].Message)
	}
	if responses[0].BlobURLPut == "" {
		return fmt.Errorf("upload request returned no blob URL")
	}

	if err := c.putBlob(ctx, responses[0].BlobURLPut, archive); err != nil {
		return err
	}

	update := []statusUpdate{{
		ID:             item.ID,
		Parent:         item.Parent,
		VissibleName:   item.VissibleName,
		Type:           item.Type,
		Version:        item.Version,
		ModifiedClient: time.Now().UTC().Format(time.RFC3339),
	}}

	var statuses []statusResponse
	err = c.do(ctx, http.MethodPut, c.storageHost+updateStatusPath, c.userToken, update, &statuses)
	if err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}
	if len(statuses) == 0 {
		return fmt.Errorf("status update returned no entries")
	}
	if !statuses[0].Success {
		return fmt.Errorf("status update refused: %s", statuses[0].Message)
	}

	return nil
}

// putBlob uploads the archive to the pre-signed URL. The URL embeds
// its own authorization, so no bearer header is sent.
func (c *Client) putBlob(ctx context.Context, url string, archive []byte) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPut, url, bytes.NewReader(archive),
	)
	if err != nil {
		return fmt.Errorf("creating blob request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &sync.ConnectionError{Service: sync.ServiceRemarkable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf(
			"blob upload failed with status %d: %s",
			resp.StatusCode, string(body),
		)
	}
	return nil
}

// do builds and executes one JSON request against an absolute URL.
// token is sent as a Bearer header when non-empty. A 401 maps to an
// AuthError and a transport failure to a ConnectionError.
func (c *Client) do(
	ctx context.Context,
	method string,
	url string,
	token string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &sync.ConnectionError{Service: sync.ServiceRemarkable, Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &sync.AuthError{
			Service: sync.ServiceRemarkable,
			Message: fmt.Sprintf("unauthorized (401) on %s %s", method, url),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"unexpected status %d on %s %s: %s",
			resp.StatusCode, method, url, string(respBody),
		)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s: %w", url, err)
	}
	return nil
}
