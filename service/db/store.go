package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Store is the Postgres-backed campaign ledger.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
	now     func() time.Time
}

var _ ledger.Repository = (*Store)(nil)

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		now:  time.Now,
	}
}

// WithMetrics records query durations on m.
func (s *Store) WithMetrics(m *metrics.Metrics) *Store {
	s.metrics = m
	return s
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Seed inserts the demo campaigns, leaving existing rows untouched.
func (s *Store) Seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, c := range ledger.SeedCampaigns() {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO campaigns (id, title, description, goal, raised, deadline, creator, receiver, image_url, is_active, app_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING`,
			c.ID, c.Title, c.Description, int64(c.Goal), int64(c.Raised), c.Deadline,
			c.Creator, c.Receiver, c.ImageURL, c.IsActive, int64(c.AppID), c.CreatedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed campaign %s: %w", c.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// track starts timing a query; call the returned func with the final error.
func (s *Store) track(op, table string) func(*error) {
	start := time.Now()
	return func(err *error) {
		if s.metrics != nil {
			s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), *err)
		}
	}
}

const campaignColumns = `id, title, description, goal, raised, deadline, creator, receiver, image_url, is_active, app_id, created_at`

func scanCampaign(row pgx.Row) (*ledger.Campaign, error) {
	var (
		c                   ledger.Campaign
		goal, raised, appID int64
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &goal, &raised, &c.Deadline,
		&c.Creator, &c.Receiver, &c.ImageURL, &c.IsActive, &appID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Goal = ledger.MicroAlgos(goal)
	c.Raised = ledger.MicroAlgos(raised)
	c.AppID = uint64(appID)
	c.Deadline = c.Deadline.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.Donors = []ledger.Donor{}
	return &c, nil
}

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadDonors fills in the donor lists of campaigns, preserving first-donation order.
func loadDonors(ctx context.Context, q queryer, campaigns []*ledger.Campaign) error {
	if len(campaigns) == 0 {
		return nil
	}
	byID := make(map[string]*ledger.Campaign, len(campaigns))
	ids := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT campaign_id, address, amount
		FROM donors
		WHERE campaign_id = ANY($1)
		ORDER BY campaign_id, seq`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			campaignID, address string
			amount              int64
		)
		if err := rows.Scan(&campaignID, &address, &amount); err != nil {
			return err
		}
		if c, ok := byID[campaignID]; ok {
			c.Donors = append(c.Donors, ledger.Donor{Address: address, Amount: ledger.MicroAlgos(amount)})
		}
	}
	return rows.Err()
}

// ListCampaigns returns every campaign, newest first.
func (s *Store) ListCampaigns(ctx context.Context) (out []*ledger.Campaign, err error) {
	defer s.track("list", "campaigns")(&err)

	rows, err := s.pool.Query(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	out = make([]*ledger.Campaign, 0)
	for rows.Next() {
		c, scanErr := scanCampaign(rows)
		if scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan campaign: %w", scanErr)
		}
		out = append(out, c)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	if err = loadDonors(ctx, s.pool, out); err != nil {
		return nil, fmt.Errorf("failed to load donors: %w", err)
	}
	return out, nil
}

// GetCampaign returns a campaign by ID.
func (s *Store) GetCampaign(ctx context.Context, id string) (c *ledger.Campaign, err error) {
	defer s.track("get", "campaigns")(&err)

	c, err = scanCampaign(s.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if err = loadDonors(ctx, s.pool, []*ledger.Campaign{c}); err != nil {
		return nil, fmt.Errorf("failed to load donors: %w", err)
	}
	return c, nil
}

// AddCampaign inserts a new campaign. Donors on the input are ignored.
func (s *Store) AddCampaign(ctx context.Context, c *ledger.Campaign) (err error) {
	if c == nil || c.ID == "" {
		return ledger.Invalid("campaign id is required")
	}
	defer s.track("insert", "campaigns")(&err)

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.Title, c.Description, int64(c.Goal), int64(c.Raised), c.Deadline,
		c.Creator, c.Receiver, c.ImageURL, c.IsActive, int64(c.AppID), createdAt,
	)
	if isUniqueViolation(err) {
		return ledger.ErrDuplicateCampaign
	}
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

// AddDonation credits a donation and the donor's reward tokens in one transaction.
func (s *Store) AddDonation(ctx context.Context, campaignID, donorAddress string, amount ledger.MicroAlgos) (c *ledger.Campaign, err error) {
	defer s.track("donate", "donors")(&err)

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		c, err = donate(ctx, tx, campaignID, donorAddress, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreditDonation logs rec and credits its donation in one transaction.
// A campaign that does not exist rolls the log entry back too.
func (s *Store) CreditDonation(ctx context.Context, rec ledger.TransactionRecord) (c *ledger.Campaign, err error) {
	defer s.track("credit", "transactions")(&err)

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.logCredit(ctx, tx, rec); err != nil {
			return err
		}
		c, err = donate(ctx, tx, rec.CampaignID, rec.Sender, rec.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreditReward logs rec and credits tokens to its sender in one transaction.
func (s *Store) CreditReward(ctx context.Context, rec ledger.TransactionRecord, tokens uint64) (err error) {
	address := ledger.NormalizeAddress(rec.Sender)
	if address == "" {
		return ledger.Invalid("reward address is required")
	}
	defer s.track("credit", "token_balances")(&err)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.logCredit(ctx, tx, rec); err != nil {
			return err
		}
		if tokens == 0 {
			return nil
		}
		return creditTokens(ctx, tx, address, tokens)
	})
}

// logCredit inserts rec into the transaction log, taking over a raw entry with the same txid.
func (s *Store) logCredit(ctx context.Context, tx pgx.Tx, rec ledger.TransactionRecord) error {
	if rec.TxID == "" {
		return ledger.Invalid("transaction id is required")
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = s.now().UTC()
	}
	tag, err := tx.Exec(ctx, insertTransactionSQL+`
		ON CONFLICT (txid) DO UPDATE SET
			kind = EXCLUDED.kind,
			sender = EXCLUDED.sender,
			receiver = EXCLUDED.receiver,
			amount = EXCLUDED.amount,
			campaign_id = EXCLUDED.campaign_id,
			note = EXCLUDED.note,
			confirmed_round = EXCLUDED.confirmed_round
		WHERE transactions.kind = '`+ledger.KindRaw+`'`, transactionArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateTransaction, rec.TxID)
	}
	return nil
}

// donate applies a donation inside tx and returns the updated campaign.
func donate(ctx context.Context, tx pgx.Tx, campaignID, donorAddress string, amount ledger.MicroAlgos) (*ledger.Campaign, error) {
	address := ledger.NormalizeAddress(donorAddress)
	if address == "" {
		return nil, ledger.Invalid("donor address is required")
	}
	if amount == 0 {
		return nil, ledger.Invalid("amount must be greater than zero")
	}

	c, err := scanCampaign(tx.QueryRow(ctx, `
		UPDATE campaigns SET raised = raised + $2
		WHERE id = $1
		RETURNING `+campaignColumns, campaignID, int64(amount)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update campaign total: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO donors (campaign_id, address, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (campaign_id, address) DO UPDATE SET amount = donors.amount + EXCLUDED.amount`,
		campaignID, address, int64(amount)); err != nil {
		return nil, fmt.Errorf("failed to upsert donor: %w", err)
	}

	if tokens := ledger.RewardTokens(amount); tokens > 0 {
		if err := creditTokens(ctx, tx, address, tokens); err != nil {
			return nil, err
		}
	}

	if err := loadDonors(ctx, tx, []*ledger.Campaign{c}); err != nil {
		return nil, fmt.Errorf("failed to load donors: %w", err)
	}
	return c, nil
}

// ExpireCampaigns deactivates active campaigns whose deadline is before now.
func (s *Store) ExpireCampaigns(ctx context.Context, now time.Time) (n int, err error) {
	defer s.track("expire", "campaigns")(&err)

	tag, err := s.pool.Exec(ctx, `UPDATE campaigns SET is_active = FALSE WHERE is_active AND deadline < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire campaigns: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// TokenBalance returns the reward tokens held by an address.
func (s *Store) TokenBalance(ctx context.Context, address string) (balance uint64, err error) {
	defer s.track("get", "token_balances")(&err)

	var tokens int64
	err = s.pool.QueryRow(ctx, `SELECT tokens FROM token_balances WHERE address = $1`,
		ledger.NormalizeAddress(address)).Scan(&tokens)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token balance: %w", err)
	}
	return uint64(tokens), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func creditTokens(ctx context.Context, e execer, address string, tokens uint64) error {
	_, err := e.Exec(ctx, `
		INSERT INTO token_balances (address, tokens, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE SET tokens = token_balances.tokens + EXCLUDED.tokens, updated_at = NOW()`,
		address, int64(tokens))
	if err != nil {
		return fmt.Errorf("failed to credit tokens: %w", err)
	}
	return nil
}

const insertTransactionSQL = `
	INSERT INTO transactions (txid, kind, sender, receiver, amount, campaign_id, note, confirmed_round, submitted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func transactionArgs(rec ledger.TransactionRecord) []any {
	return []any{
		rec.TxID, rec.Kind, rec.Sender, rec.Receiver, int64(rec.Amount), rec.CampaignID,
		rec.Note, int64(rec.ConfirmedRound), rec.SubmittedAt,
	}
}

// RecordTransaction appends a transaction to the log. Each transaction ID is recorded once.
func (s *Store) RecordTransaction(ctx context.Context, rec ledger.TransactionRecord) (err error) {
	if rec.TxID == "" {
		return ledger.Invalid("transaction id is required")
	}
	defer s.track("insert", "transactions")(&err)

	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = s.now().UTC()
	}
	_, err = s.pool.Exec(ctx, insertTransactionSQL, transactionArgs(rec)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateTransaction, rec.TxID)
	}
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// ListTransactions returns transactions sent or received by address, newest first.
// An empty address lists every transaction; limit <= 0 means no limit.
func (s *Store) ListTransactions(ctx context.Context, address string, limit, offset int) (out []*ledger.TransactionRecord, err error) {
	defer s.track("list", "transactions")(&err)

	address = strings.TrimSpace(address)
	if offset < 0 {
		offset = 0
	}
	var pgLimit *int64
	if limit > 0 {
		l := int64(limit)
		pgLimit = &l
	}

	rows, err := s.pool.Query(ctx, `
		SELECT txid, kind, sender, receiver, amount, campaign_id, note, confirmed_round, submitted_at
		FROM transactions
		WHERE $1 = '' OR sender = $1 OR receiver = $1
		ORDER BY submitted_at DESC, txid
		LIMIT $2 OFFSET $3`, address, pgLimit, int64(offset))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out = make([]*ledger.TransactionRecord, 0)
	for rows.Next() {
		var (
			rec           ledger.TransactionRecord
			amount, round int64
		)
		if err = rows.Scan(&rec.TxID, &rec.Kind, &rec.Sender, &rec.Receiver, &amount,
			&rec.CampaignID, &rec.Note, &round, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		rec.Amount = ledger.MicroAlgos(amount)
		rec.ConfirmedRound = uint64(round)
		rec.SubmittedAt = rec.SubmittedAt.UTC()
		out = append(out, &rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
