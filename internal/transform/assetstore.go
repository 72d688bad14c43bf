package transform

import (
	"context"
	"crypto/sha1" //nolint:gosec // the asset store signs requests with SHA-1
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
)

// AssetStoreCredentials identifies an account on the asset store
type AssetStoreCredentials struct {
	CloudName string
	APIKey    string
	APISecret string
}

// HTTPAssetStore talks to a Cloudinary-compatible admin and upload API
type HTTPAssetStore struct {
	client  httpclient.Client
	baseURL string
	folder  string
	creds   AssetStoreCredentials
	now     func() time.Time
}

// NewHTTPAssetStore creates an asset store client. Assets live under folder.
func NewHTTPAssetStore(client httpclient.Client, baseURL, folder string, creds AssetStoreCredentials) *HTTPAssetStore {
	return &HTTPAssetStore{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		folder:  strings.Trim(folder, "/"),
		creds:   creds,
		now:     time.Now,
	}
}

func (s *HTTPAssetStore) publicID(id string) string {
	if s.folder == "" {
		return id
	}
	return s.folder + "/" + id
}

// Lookup implements AssetStore. A 404 is reported as not found, not as an error.
func (s *HTTPAssetStore) Lookup(ctx context.Context, id string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/v1_1/%s/resources/image/upload/%s",
		s.baseURL, url.PathEscape(s.creds.CloudName), s.escapedPublicID(id))

	body, err := s.client.Get(ctx, endpoint, httpclient.WithBasicAuth(s.creds.APIKey, s.creds.APISecret))
	if err != nil {
		if httpclient.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}

	secureURL := gjson.GetBytes(body, "secure_url").String()
	if secureURL == "" {
		return "", false, errors.New("asset resource carries no secure_url")
	}
	return secureURL, true, nil
}

// UploadFromURL implements AssetStore
func (s *HTTPAssetStore) UploadFromURL(ctx context.Context, id, sourceURL string) (string, error) {
	params := map[string]string{
		"public_id": id,
		"timestamp": strconv.FormatInt(s.now().Unix(), 10),
	}
	if s.folder != "" {
		params["folder"] = s.folder
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("file", sourceURL)
	form.Set("api_key", s.creds.APIKey)
	form.Set("signature", Sign(params, s.creds.APISecret))

	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", s.baseURL, url.PathEscape(s.creds.CloudName))
	body, err := s.client.PostForm(ctx, endpoint, form)
	if err != nil {
		return "", err
	}

	secureURL := gjson.GetBytes(body, "secure_url").String()
	if secureURL == "" {
		return "", errors.New("upload response carries no secure_url")
	}
	return secureURL, nil
}

func (s *HTTPAssetStore) escapedPublicID(id string) string {
	segments := strings.Split(s.publicID(id), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// Sign computes the request signature: the hex SHA-1 of the key-sorted
// "k=v" pairs joined by "&", with the secret appended.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
