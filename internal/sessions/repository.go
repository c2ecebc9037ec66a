package sessions

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/internal/docx"
	"github.com/scrivenerhq/scrivener/internal/extraction"
	"github.com/scrivenerhq/scrivener/internal/workflow"
	"github.com/scrivenerhq/scrivener/pkg/pagination"
	"github.com/scrivenerhq/scrivener/pkg/query"
	"github.com/scrivenerhq/scrivener/pkg/repository"
	"github.com/scrivenerhq/scrivener/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	workflow   *workflow.Runtime
	store      *store
	logger     *slog.Logger
	pagination pagination.Config
	workDir    string
}

// New creates a session repository implementing the System interface.
// workDir holds the local working copies; lockWait bounds how long a
// mutating operation waits for a busy document before failing with ErrBusy.
func New(
	db *sql.DB,
	store storage.System,
	rt *workflow.Runtime,
	logger *slog.Logger,
	pagination pagination.Config,
	workDir string,
	lockWait time.Duration,
) System {
	return &repo{
		db:         db,
		storage:    store,
		workflow:   rt,
		store:      newStore(lockWait),
		logger:     logger.With("system", "sessions"),
		pagination: pagination,
		workDir:    workDir,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "StorageKey")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Session, error) {
	if _, err := docx.Load(cmd.Data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	id := uuid.New()
	filename := sanitizeFilename(cmd.Filename)
	key := revisionKey(id, 1, filename)

	contentType := cmd.ContentType
	if contentType == "" {
		contentType = DocxContentType
	}

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), contentType); err != nil {
		return nil, fmt.Errorf("upload revision blob: %w", err)
	}

	path := r.workPath(id)
	if err := r.writeWorkFile(path, cmd.Data); err != nil {
		r.compensateBlob(ctx, key)
		return nil, err
	}

	q := `
		INSERT INTO documents(id, filename, content_type, size_bytes, storage_key, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		RETURNING id, filename, content_type, size_bytes, storage_key, version, status, injected_keys, uploaded_at, updated_at`

	insertArgs := []any{
		id,
		filename,
		contentType,
		int64(len(cmd.Data)),
		key,
	}

	record, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanDocument)
	})
	if err != nil {
		r.compensateBlob(ctx, key)
		r.removeWorkFile(path)
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	result, err := workflow.Execute(ctx, r.workflow, path)
	if err != nil {
		r.compensateRecord(ctx, id)
		r.compensateBlob(ctx, key)
		r.removeWorkFile(path)
		return nil, fmt.Errorf("initial extraction: %w", err)
	}

	sess := buildSession(record, result, map[string]struct{}{}, nil, path)
	r.store.put(sess)

	r.logger.Info(
		"session created",
		"id", sess.ID,
		"filename", sess.Filename,
		"variable_count", len(sess.Variables),
		"degraded", sess.Degraded,
	)
	return sess, nil
}

func (r *repo) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	if sess, ok := r.store.get(id); ok {
		return sess, nil
	}

	release, err := r.store.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	return r.resolveLocked(ctx, id)
}

func (r *repo) Extract(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := workflow.Execute(ctx, r.workflow, sess.workPath)
	if err != nil {
		return nil, mapWorkflowError(err)
	}

	next := buildSession(sess.Document, result, sess.injected, currentValues(sess.Variables), sess.workPath)

	// A replacement may have landed while extraction ran; publish only when
	// the cached version is still the one this extraction read.
	if cached, ok := r.store.get(id); ok && cached.Version == sess.Version {
		r.store.put(next)
	}

	return next, nil
}

func (r *repo) Replace(ctx context.Context, id uuid.UUID, values map[string]string) (*ReplaceResult, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no replacement values", ErrInvalidFile)
	}

	release, err := r.store.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := r.resolveLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := docx.Open(sess.workPath)
	if err != nil {
		return nil, mapWorkflowError(err)
	}

	plan := planReplacement(sess, values)

	count := doc.ReplaceAll(plan.rawValues)

	next, err := r.stageAndCommit(ctx, sess, doc, plan.injected)
	if err != nil {
		return nil, err
	}

	next = r.refresh(ctx, next, overlay(currentValues(sess.Variables), plan.replaced))

	r.logger.Info(
		"replacement applied",
		"id", id,
		"version", next.Version,
		"replaced", count,
		"skipped", len(plan.skipped),
	)

	return &ReplaceResult{
		Session:  next,
		Replaced: count,
		Skipped:  plan.skipped,
	}, nil
}

// replacementPlan is the resolved input for one replacement cycle: rawValues
// maps every raw token form of each matched key to its value, replaced holds
// the matched keys, injected extends the session's suppression set with keys
// whose token forms arrive inside replacement values, and skipped lists
// requested keys with no matching variable, sorted.
type replacementPlan struct {
	rawValues map[string]string
	replaced  map[string]string
	injected  map[string]struct{}
	skipped   []string
}

func planReplacement(sess *Session, values map[string]string) replacementPlan {
	byKey := make(map[string]extraction.Variable, len(sess.Variables))
	for _, v := range sess.Variables {
		byKey[v.Key] = v
	}

	plan := replacementPlan{
		rawValues: make(map[string]string, len(values)),
		replaced:  make(map[string]string, len(values)),
		injected:  cloneSet(sess.injected),
	}

	for key, value := range values {
		normalized := extraction.NormalizeKey(key)
		v, ok := byKey[normalized]
		if !ok {
			plan.skipped = append(plan.skipped, normalized)
			continue
		}

		// A key occurring under more than one delimiter grammar carries a
		// raw form per grammar; all of them rewrite to the same value.
		for _, raw := range v.RawForms {
			plan.rawValues[raw] = value
		}
		if len(v.RawForms) == 0 {
			plan.rawValues[v.RawToken] = value
		}
		plan.replaced[normalized] = value

		// Values containing delimiter syntax are recorded as injected so
		// re-extraction never reports them back as variables.
		for _, t := range extraction.Tokens(value) {
			if _, exists := byKey[t.Key]; !exists {
				plan.injected[t.Key] = struct{}{}
			}
		}
	}
	sort.Strings(plan.skipped)

	return plan
}

func (r *repo) SaveEdited(ctx context.Context, id uuid.UUID, data []byte) (*Session, error) {
	release, err := r.store.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := r.resolveLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := docx.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	next, err := r.stageAndCommit(ctx, sess, doc, cloneSet(sess.injected))
	if err != nil {
		return nil, err
	}

	next = r.refresh(ctx, next, currentValues(sess.Variables))

	r.logger.Info(
		"edited document saved",
		"id", id,
		"version", next.Version,
		"size_bytes", len(data),
	)
	return next, nil
}

func (r *repo) Snapshot(ctx context.Context, id uuid.UUID) (string, error) {
	sess, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}

	doc, err := docx.Open(sess.workPath)
	if err != nil {
		return "", mapWorkflowError(err)
	}

	return doc.Text(), nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	release, err := r.store.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	record, err := r.find(ctx, id)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM documents WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	for v := 1; v <= record.Version; v++ {
		key := revisionKey(id, v, record.Filename)
		if delErr := r.storage.Delete(ctx, key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			r.logger.Warn("revision blob delete failed", "key", key, "error", delErr)
		}
	}

	r.removeWorkFile(r.workPath(id))
	r.store.remove(id)

	r.logger.Info("session deleted", "id", id)
	return nil
}

// stageAndCommit writes the document to a staging file next to the working
// copy, commits the revision, and only then renames the staged bytes over the
// working copy. A failed commit leaves the working copy, cache, blob, and
// record all at the prior revision.
func (r *repo) stageAndCommit(
	ctx context.Context,
	sess *Session,
	doc *docx.Document,
	injected map[string]struct{},
) (*Session, error) {
	staged := sess.workPath + ".staging"
	if err := doc.Save(staged); err != nil {
		return nil, fmt.Errorf("stage working copy: %w", err)
	}

	next, err := r.commitRevision(ctx, sess, doc, injected)
	if err != nil {
		r.removeWorkFile(staged)
		return nil, err
	}

	if err := os.Rename(staged, sess.workPath); err != nil {
		r.removeWorkFile(staged)
		return nil, fmt.Errorf("promote working copy: %w", err)
	}
	return next, nil
}

// commitRevision uploads the document's new revision blob and advances the
// persisted record in one step; the blob upload is compensated if the record
// update fails.
func (r *repo) commitRevision(
	ctx context.Context,
	sess *Session,
	doc *docx.Document,
	injected map[string]struct{},
) (*Session, error) {
	data, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize revision: %w", err)
	}

	newVersion := sess.Version + 1
	key := revisionKey(sess.ID, newVersion, sess.Filename)

	if err := r.storage.Upload(ctx, key, bytes.NewReader(data), DocxContentType); err != nil {
		return nil, fmt.Errorf("upload revision blob: %w", err)
	}

	keys, err := marshalInjected(injected)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE documents
		SET version = $2, storage_key = $3, size_bytes = $4, injected_keys = $5, updated_at = now()
		WHERE id = $1
		RETURNING id, filename, content_type, size_bytes, storage_key, version, status, injected_keys, uploaded_at, updated_at`

	updateArgs := []any{
		sess.ID,
		newVersion,
		key,
		int64(len(data)),
		keys,
	}

	record, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, updateArgs, scanDocument)
	})
	if err != nil {
		r.compensateBlob(ctx, key)
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	return &Session{
		Document: record,
		workPath: sess.workPath,
		injected: injected,
	}, nil
}

// refresh re-extracts the variable set for a freshly committed revision and
// publishes the new session state. Extraction failure after a committed
// revision is not fatal: the session carries an empty variable set flagged
// degraded until the next extraction succeeds.
func (r *repo) refresh(ctx context.Context, sess *Session, current map[string]string) *Session {
	result, err := workflow.Execute(ctx, r.workflow, sess.workPath)
	if err != nil {
		r.logger.Warn("post-commit extraction failed", "id", sess.ID, "error", err)
		sess.Degraded = true
		sess.DegradedReason = "variable extraction failed"
		r.store.put(sess)
		return sess
	}

	next := buildSession(sess.Document, result, sess.injected, current, sess.workPath)
	r.store.put(next)
	return next
}

// resolveLocked returns the cached session or reconstructs it from the
// persisted record and latest revision blob. Callers must hold the
// document's mutation slot.
func (r *repo) resolveLocked(ctx context.Context, id uuid.UUID) (*Session, error) {
	if sess, ok := r.store.get(id); ok {
		return sess, nil
	}

	record, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}

	blob, err := r.storage.Download(ctx, record.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("download revision blob: %w", err)
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		return nil, fmt.Errorf("read revision blob: %w", err)
	}

	path := r.workPath(id)
	if err := r.writeWorkFile(path, data); err != nil {
		return nil, err
	}

	result, err := workflow.Execute(ctx, r.workflow, path)
	if err != nil {
		return nil, mapWorkflowError(err)
	}

	sess := buildSession(*record, result, toSet(record.InjectedKeys), nil, path)
	r.store.put(sess)

	r.logger.Info("session reconstructed", "id", id, "version", sess.Version)
	return sess, nil
}

func (r *repo) find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) workPath(id uuid.UUID) string {
	return filepath.Join(r.workDir, id.String()+".docx")
}

func (r *repo) writeWorkFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write working copy: %w", err)
	}
	return nil
}

func (r *repo) removeWorkFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("working copy remove failed", "path", path, "error", err)
	}
}

func (r *repo) compensateBlob(ctx context.Context, key string) {
	if err := r.storage.Delete(ctx, key); err != nil {
		r.logger.Warn("compensating blob delete failed", "key", key, "error", err)
	}
}

func (r *repo) compensateRecord(ctx context.Context, id uuid.UUID) {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		r.logger.Warn("compensating record delete failed", "id", id, "error", err)
	}
}

func buildSession(
	record Document,
	result *workflow.ExtractionResult,
	injected map[string]struct{},
	current map[string]string,
	workPath string,
) *Session {
	variables := make([]extraction.Variable, 0, len(result.Variables))
	for _, v := range result.Variables {
		if _, ok := injected[v.Key]; ok {
			continue
		}
		if cv, ok := current[v.Key]; ok {
			v.CurrentValue = cv
		}
		variables = append(variables, v)
	}

	record.InjectedKeys = toList(injected)

	return &Session{
		Document:       record,
		Variables:      variables,
		Degraded:       result.Degraded,
		DegradedReason: result.DegradedReason,
		workPath:       workPath,
		injected:       injected,
	}
}

func mapWorkflowError(err error) error {
	if errors.Is(err, docx.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}

func currentValues(variables []extraction.Variable) map[string]string {
	current := make(map[string]string)
	for _, v := range variables {
		if v.CurrentValue != "" {
			current[v.Key] = v.CurrentValue
		}
	}
	return current
}

func overlay(base, updates map[string]string) map[string]string {
	for k, v := range updates {
		base[k] = v
	}
	return base
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	cloned := make(map[string]struct{}, len(set))
	for k := range set {
		cloned[k] = struct{}{}
	}
	return cloned
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func toList(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func marshalInjected(set map[string]struct{}) ([]byte, error) {
	data, err := json.Marshal(toList(set))
	if err != nil {
		return nil, fmt.Errorf("marshal injected keys: %w", err)
	}
	return data, nil
}

func revisionKey(id uuid.UUID, version int, filename string) string {
	return fmt.Sprintf("sessions/%s/v%d/%s", id, version, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" {
		name = "document.docx"
	}
	return url.PathEscape(name)
}
