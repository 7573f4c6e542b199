package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/flowbridge/engine/internal/domain"
)

// workflowModel is the bun ORM row shape, grounded on the teacher's
// WorkflowModel — a single jsonb column carries the nodes/connections graph
// since domain.Workflow, unlike the teacher's domain.Workflow, is a single
// aggregate rather than a root with separately-addressable child entities.
type workflowModel struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID          string         `bun:"id,pk"`
	Name        string         `bun:"name"`
	Active      bool           `bun:"active"`
	Nodes       []byte         `bun:"nodes,type:jsonb"`
	Connections []byte         `bun:"connections,type:jsonb"`
	Settings    map[string]any `bun:"settings,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at"`
	UpdatedAt   time.Time      `bun:"updated_at"`
}

// BunStore is the Postgres-backed Store, grounded on the teacher's BunStore
// (same sql.OpenDB+pgdriver.NewConnector+bun.NewDB construction and
// RunInTx/NewInsert().On("CONFLICT...") upsert pattern).
type BunStore struct {
	db *bun.DB
}

func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates the workflows table if it doesn't already exist.
func (s *BunStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*workflowModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

func toModel(wf *domain.Workflow) (*workflowModel, error) {
	nodesJSON, err := marshalJSON(wf.Nodes)
	if err != nil {
		return nil, err
	}
	connsJSON, err := marshalJSON(wf.Connections)
	if err != nil {
		return nil, err
	}
	return &workflowModel{
		ID:          wf.ID,
		Name:        wf.Name,
		Active:      wf.Active,
		Nodes:       nodesJSON,
		Connections: connsJSON,
		Settings:    wf.Settings,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}, nil
}

func fromModel(m *workflowModel) (*domain.Workflow, error) {
	wf := &domain.Workflow{
		ID:        m.ID,
		Name:      m.Name,
		Active:    m.Active,
		Settings:  m.Settings,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if err := unmarshalJSON(m.Nodes, &wf.Nodes); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(m.Connections, &wf.Connections); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *BunStore) Save(ctx context.Context, wf *domain.Workflow) error {
	model, err := toModel(wf)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Exec(ctx)
	return err
}

func (s *BunStore) Get(ctx context.Context, id string) (*domain.Workflow, error) {
	model := new(workflowModel)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromModel(model)
}

func (s *BunStore) List(ctx context.Context) ([]*domain.Workflow, error) {
	var models []*workflowModel
	if err := s.db.NewSelect().Model(&models).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.Workflow, 0, len(models))
	for _, m := range models {
		wf, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, nil
}

func (s *BunStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*workflowModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
