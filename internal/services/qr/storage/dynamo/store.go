// Package dynamo provides a DynamoDB-backed QR code and sheet store.
//
// Identifiers and sheets live in two tables keyed by a string "id". Batch
// inserts and sheet creation are single TransactWriteItems calls, so a
// collision or a dangling identifier leaves both tables untouched.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
)

// MaxTransactItems is the DynamoDB limit on actions in one transaction.
const MaxTransactItems = 100

// MaxSheetCells is the largest sheet CreateSheet can write: one put for the
// sheet plus a condition check per qr code.
const MaxSheetCells = MaxTransactItems - 1

const conditionalCheckFailed = "ConditionalCheckFailed"

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config names the tables used by Store.
type Config struct {
	QRTable    string
	SheetTable string
	// Endpoint overrides the service endpoint, for DynamoDB Local.
	Endpoint string
}

func (c Config) validate() error {
	if strings.TrimSpace(c.QRTable) == "" {
		return fmt.Errorf("qr table is required")
	}
	if strings.TrimSpace(c.SheetTable) == "" {
		return fmt.Errorf("sheet table is required")
	}
	return nil
}

// Store persists QR codes and sheets in DynamoDB.
type Store struct {
	api    API
	config Config
	now    func() time.Time
}

// New returns a store over an existing client.
func New(api API, cfg Config) (*Store, error) {
	if api == nil {
		return nil, fmt.Errorf("dynamodb client is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Store{api: api, config: cfg, now: time.Now}, nil
}

// Open loads the default AWS configuration and returns a store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, cfg)
}

// Close is a no-op; the AWS client holds no resources that need releasing.
func (s *Store) Close() error {
	return nil
}

type qrItem struct {
	ID          string `dynamodbav:"id"`
	RedirectURL string `dynamodbav:"redirect_url"`
	CreatedAt   int64  `dynamodbav:"created_at"`
	UpdatedAt   int64  `dynamodbav:"updated_at"`
}

func (i qrItem) toQRCode() storage.QRCode {
	return storage.QRCode{
		ID:          i.ID,
		RedirectURL: i.RedirectURL,
		CreatedAt:   time.UnixMilli(i.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(i.UpdatedAt).UTC(),
	}
}

type sheetItem struct {
	ID        string   `dynamodbav:"id"`
	QRIDs     []string `dynamodbav:"qr_ids"`
	CreatedAt int64    `dynamodbav:"created_at"`
}

func (i sheetItem) toSheet() storage.Sheet {
	return storage.Sheet{
		ID:        i.ID,
		QRIDs:     i.QRIDs,
		CreatedAt: time.UnixMilli(i.CreatedAt).UTC(),
	}
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.api == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) newQRItem(id string) (map[string]types.AttributeValue, error) {
	now := s.now().UTC().UnixMilli()
	item, err := attributevalue.MarshalMap(qrItem{ID: id, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("marshal qr code: %w", err)
	}
	return item, nil
}

// InsertQRCode stores one unbound identifier.
func (s *Store) InsertQRCode(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("qr id is required")
	}
	item, err := s.newQRItem(id)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.QRTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert qr code: %w", err)
	}
	return nil
}

// InsertQRCodes stores every id in one transaction.
func (s *Store) InsertQRCodes(ctx context.Context, ids []string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxTransactItems {
		return fmt.Errorf("batch of %d qr codes exceeds transaction limit of %d", len(ids), MaxTransactItems)
	}

	clean := make([]string, len(ids))
	seen := make(map[string]struct{}, len(ids))
	items := make([]types.TransactWriteItem, 0, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("qr id %d is required", i)
		}
		if _, ok := seen[id]; ok {
			return &storage.DuplicateKeyError{Key: id}
		}
		seen[id] = struct{}{}
		clean[i] = id

		item, err := s.newQRItem(id)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.config.QRTable),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		})
	}

	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if i, ok := failedConditionIndex(err); ok && i < len(clean) {
			return &storage.DuplicateKeyError{Key: clean[i]}
		}
		return fmt.Errorf("insert qr codes: %w", err)
	}
	return nil
}

// BindQRCode overwrites the redirect target of an existing identifier.
func (s *Store) BindQRCode(ctx context.Context, id, redirectURL string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	redirectURL = strings.TrimSpace(redirectURL)
	if id == "" {
		return fmt.Errorf("qr id is required")
	}
	if redirectURL == "" {
		return fmt.Errorf("redirect url is required")
	}
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.config.QRTable),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #redirect_url = :redirect_url, #updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#redirect_url": "redirect_url",
			"#updated_at":   "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":redirect_url": &types.AttributeValueMemberS{Value: redirectURL},
			":updated_at":   &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().UTC().UnixMilli(), 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("bind qr code: %w", err)
	}
	return nil
}

// GetQRCode returns one identifier.
func (s *Store) GetQRCode(ctx context.Context, id string) (storage.QRCode, error) {
	if err := s.ready(ctx); err != nil {
		return storage.QRCode{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.QRCode{}, fmt.Errorf("qr id is required")
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.QRTable),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return storage.QRCode{}, fmt.Errorf("get qr code: %w", err)
	}
	if out.Item == nil {
		return storage.QRCode{}, storage.ErrNotFound
	}
	var item qrItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return storage.QRCode{}, fmt.Errorf("unmarshal qr code: %w", err)
	}
	return item.toQRCode(), nil
}

// ListQRCodes scans the identifier table and returns codes ordered by id.
func (s *Store) ListQRCodes(ctx context.Context) ([]storage.QRCode, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var items []qrItem
	if err := s.scan(ctx, s.config.QRTable, func(page []map[string]types.AttributeValue) error {
		var batch []qrItem
		if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
			return fmt.Errorf("unmarshal qr codes: %w", err)
		}
		items = append(items, batch...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}

	codes := make([]storage.QRCode, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.toQRCode())
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].ID < codes[j].ID })
	return codes, nil
}

// CreateSheet writes the sheet and checks that each referenced identifier
// exists, all in one transaction.
func (s *Store) CreateSheet(ctx context.Context, sheet storage.Sheet) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sheetID := strings.TrimSpace(sheet.ID)
	if sheetID == "" {
		return fmt.Errorf("sheet id is required")
	}
	if len(sheet.QRIDs) == 0 {
		return fmt.Errorf("sheet qr ids are required")
	}

	// A transaction may touch each item once, so repeated ids share a check.
	var checked []string
	seen := make(map[string]struct{}, len(sheet.QRIDs))
	qrIDs := make([]string, len(sheet.QRIDs))
	for i, qrID := range sheet.QRIDs {
		qrID = strings.TrimSpace(qrID)
		qrIDs[i] = qrID
		if _, ok := seen[qrID]; ok {
			continue
		}
		seen[qrID] = struct{}{}
		checked = append(checked, qrID)
	}
	if 1+len(checked) > MaxTransactItems {
		return fmt.Errorf("sheet with %d qr codes exceeds transaction limit of %d", len(checked), MaxTransactItems)
	}

	createdAt := sheet.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	item, err := attributevalue.MarshalMap(sheetItem{
		ID:        sheetID,
		QRIDs:     qrIDs,
		CreatedAt: createdAt.UTC().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal sheet: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, 1+len(checked))
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.config.SheetTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
	for _, qrID := range checked {
		items = append(items, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName:           aws.String(s.config.QRTable),
				Key:                 idKey(qrID),
				ConditionExpression: aws.String("attribute_exists(id)"),
			},
		})
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if i, ok := failedConditionIndex(err); ok {
			if i == 0 {
				return storage.ErrAlreadyExists
			}
			if i-1 < len(checked) {
				return fmt.Errorf("%w: %s", storage.ErrUnknownQRCode, checked[i-1])
			}
		}
		return fmt.Errorf("create sheet: %w", err)
	}
	return nil
}

// GetSheet returns a sheet with its identifiers in fill order.
func (s *Store) GetSheet(ctx context.Context, id string) (storage.Sheet, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Sheet{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Sheet{}, fmt.Errorf("sheet id is required")
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.SheetTable),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return storage.Sheet{}, fmt.Errorf("get sheet: %w", err)
	}
	if out.Item == nil {
		return storage.Sheet{}, storage.ErrNotFound
	}
	var item sheetItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return storage.Sheet{}, fmt.Errorf("unmarshal sheet: %w", err)
	}
	return item.toSheet(), nil
}

// ListSheets scans the sheet table and returns sheets newest first.
func (s *Store) ListSheets(ctx context.Context) ([]storage.Sheet, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var items []sheetItem
	if err := s.scan(ctx, s.config.SheetTable, func(page []map[string]types.AttributeValue) error {
		var batch []sheetItem
		if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
			return fmt.Errorf("unmarshal sheets: %w", err)
		}
		items = append(items, batch...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt > items[j].CreatedAt
		}
		return items[i].ID > items[j].ID
	})
	sheets := make([]storage.Sheet, 0, len(items))
	for _, item := range items {
		sheets = append(sheets, item.toSheet())
	}
	return sheets, nil
}

func (s *Store) scan(ctx context.Context, table string, page func([]map[string]types.AttributeValue) error) error {
	paginator := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		if err := page(out.Items); err != nil {
			return err
		}
	}
	return nil
}

// failedConditionIndex returns the index of the first transaction action
// whose condition failed.
func failedConditionIndex(err error) (int, bool) {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		return 0, false
	}
	for i, reason := range txErr.CancellationReasons {
		if reason.Code != nil && *reason.Code == conditionalCheckFailed {
			return i, true
		}
	}
	return 0, false
}

var _ storage.Store = (*Store)(nil)
