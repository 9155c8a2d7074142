// Package fetch implements the three-scheme ResourceFetcher SPEC_FULL.md
// §11.4 fixes: file://, http(s)://, and oci://. Grounded in the teacher's
// cmd/reglet/plugins_pull.go "resolve a reference, pull it" shape, with the
// actual OCI pull mechanics built on the teacher's own (previously unused)
// oras.land/oras-go/v2 and github.com/opencontainers/image-spec
// dependencies, and tag-constraint resolution reusing the teacher's
// github.com/Masterminds/semver/v3 dependency.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"

	"github.com/loomhost/loom/internal/application/ports"
	"github.com/loomhost/loom/internal/domain/component"
)

// Fetcher is the stdlib/oras-backed ports.ResourceFetcher implementation.
type Fetcher struct {
	stagingDir string
	httpClient *http.Client
	ociTimeout time.Duration
}

// New constructs a Fetcher. stagingDir is the `downloads/` directory a fetch
// stages into before CopyTo atomically moves the result into the plugin
// directory; httpTimeout and ociTimeout bound their respective schemes
// (HTTP_TIMEOUT_SECS / OCI_TIMEOUT_SECS or their LOOM_-prefixed forms,
// defaulting to 30s).
func New(stagingDir string, httpTimeout, ociTimeout time.Duration) (*Fetcher, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil { //nolint:gosec // G301: standard perms for a staging dir
		return nil, fmt.Errorf("fetch: create staging dir: %w", err)
	}
	return &Fetcher{
		stagingDir: stagingDir,
		httpClient: &http.Client{Timeout: httpTimeout},
		ociTimeout: ociTimeout,
	}, nil
}

// resource is the fetch.Fetcher's ports.FetchedResource implementation: the
// bytes already live in memory, staged under a uuid temp name so CopyTo can
// promote them into the plugin directory with a single rename.
type resource struct {
	data     []byte
	id       component.ID
	tempPath string
}

func (r *resource) Bytes() []byte          { return r.data }
func (r *resource) DerivedID() component.ID { return r.id }

// CopyTo renames the staged temp file into dir/<id>.wasm, avoiding a window
// where a partially written module is visible to a concurrent list/compile.
func (r *resource) CopyTo(dir string) error {
	dest := filepath.Join(dir, string(r.id)+".wasm")
	if err := os.Rename(r.tempPath, dest); err != nil {
		return fmt.Errorf("fetch: promote staged file: %w", err)
	}
	return nil
}

// stage writes data to a uuid-named temp file under the staging directory,
// the same idiom the Cache Store uses for write_module/write_metadata.
func (f *Fetcher) stage(data []byte) (string, error) {
	tmp := filepath.Join(f.stagingDir, uuid.NewString()+".wasm.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // G306: module bytes are not secret
		return "", fmt.Errorf("fetch: stage download: %w", err)
	}
	return tmp, nil
}

// Fetch dispatches uri by scheme to one of fetchFile, fetchHTTP, fetchOCI.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (ports.FetchedResource, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return f.fetchFile(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return f.fetchHTTP(ctx, uri)
	case strings.HasPrefix(uri, "oci://"):
		return f.fetchOCI(ctx, uri)
	default:
		return nil, fmt.Errorf("fetch: unsupported scheme in %q", uri)
	}
}

func idFromFileName(name string) component.ID {
	base := filepath.Base(name)
	return component.ID(strings.TrimSuffix(base, filepath.Ext(base)))
}

func (f *Fetcher) fetchFile(uri string) (*resource, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid file uri %q: %w", uri, err)
	}
	data, err := os.ReadFile(parsed.Path)
	if err != nil {
		return nil, fmt.Errorf("fetch: read %q: %w", parsed.Path, err)
	}
	tmp, err := f.stage(data)
	if err != nil {
		return nil, err
	}
	return &resource{data: data, id: idFromFileName(parsed.Path), tempPath: tmp}, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, uri string) (*resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request for %q: %w", uri, err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: GET %q: %w", uri, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: GET %q: unexpected status %d", uri, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body of %q: %w", uri, err)
	}
	tmp, err := f.stage(data)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid http uri %q: %w", uri, err)
	}
	return &resource{data: data, id: idFromFileName(parsed.Path), tempPath: tmp}, nil
}

// fetchOCI pulls a single-layer wasm artifact: oci://registry/repo:tag, or
// oci://registry/repo:^1.2 where the tag position is a semver constraint
// resolved against the repository's tag list.
func (f *Fetcher) fetchOCI(ctx context.Context, uri string) (*resource, error) {
	ctx, cancel := context.WithTimeout(ctx, f.ociTimeout)
	defer cancel()

	ref := strings.TrimPrefix(uri, "oci://")
	registryRepo, tagOrConstraint, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, fmt.Errorf("fetch: oci reference %q missing tag or constraint", uri)
	}

	repo, err := remote.NewRepository(registryRepo)
	if err != nil {
		return nil, fmt.Errorf("fetch: open repository %q: %w", registryRepo, err)
	}

	tag, err := f.resolveTag(ctx, repo, tagOrConstraint)
	if err != nil {
		return nil, err
	}

	dst := memory.New()
	manifestDesc, err := oras.Copy(ctx, repo, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("fetch: pull %s:%s: %w", registryRepo, tag, err)
	}

	manifestBytes, err := content.FetchAll(ctx, dst, manifestDesc)
	if err != nil {
		return nil, fmt.Errorf("fetch: read manifest for %s:%s: %w", registryRepo, tag, err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("fetch: parse manifest for %s:%s: %w", registryRepo, tag, err)
	}

	layerDesc, err := findWasmLayer(manifest)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s:%s: %w", registryRepo, tag, err)
	}

	data, err := content.FetchAll(ctx, dst, layerDesc)
	if err != nil {
		return nil, fmt.Errorf("fetch: read layer for %s:%s: %w", registryRepo, tag, err)
	}

	tmp, err := f.stage(data)
	if err != nil {
		return nil, err
	}

	id := component.ID(path.Base(strings.TrimSuffix(registryRepo, "/")))
	return &resource{data: data, id: id, tempPath: tmp}, nil
}

const wasmLayerMediaType = "application/wasm"

func findWasmLayer(manifest ocispec.Manifest) (ocispec.Descriptor, error) {
	for _, layer := range manifest.Layers {
		if layer.MediaType == wasmLayerMediaType {
			return layer, nil
		}
	}
	if len(manifest.Layers) == 1 {
		return manifest.Layers[0], nil
	}
	return ocispec.Descriptor{}, fmt.Errorf("no %s layer found in manifest", wasmLayerMediaType)
}

// resolveTag returns tagOrConstraint unchanged unless it parses as a semver
// constraint (e.g. "^1.2"), in which case it lists the repository's tags and
// picks the highest one satisfying the constraint.
func (f *Fetcher) resolveTag(ctx context.Context, repo *remote.Repository, tagOrConstraint string) (string, error) {
	constraint, err := semver.NewConstraint(tagOrConstraint)
	if err != nil {
		// Not a constraint syntax; treat as a literal tag.
		return tagOrConstraint, nil
	}

	var best *semver.Version
	var bestTag string
	err = repo.Tags(ctx, "", func(tags []string) error {
		for _, tag := range tags {
			v, err := semver.NewVersion(tag)
			if err != nil {
				continue
			}
			if !constraint.Check(v) {
				continue
			}
			if best == nil || v.GreaterThan(best) {
				best = v
				bestTag = tag
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch: list tags: %w", err)
	}
	if best == nil {
		return "", fmt.Errorf("fetch: no tag satisfies constraint %q", tagOrConstraint)
	}
	return bestTag, nil
}
