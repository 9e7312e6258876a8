package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is an in-memory DynamoDB that understands the handful of
// expressions Store issues.
type fakeAPI struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	pageSize int
	scans    int
}

func newFakeAPI(tables ...string) *fakeAPI {
	f := &fakeAPI{tables: map[string]map[string]map[string]types.AttributeValue{}, pageSize: 2}
	for _, table := range tables {
		f.tables[table] = map[string]map[string]types.AttributeValue{}
	}
	return f
}

func keyOf(key map[string]types.AttributeValue) string {
	if v, ok := key["id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeAPI) table(name *string) (map[string]map[string]types.AttributeValue, error) {
	table, ok := f.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + aws.ToString(name))}
	}
	return table, nil
}

// conditionHolds evaluates attribute_exists(id) and attribute_not_exists(id).
func conditionHolds(expr *string, exists bool) bool {
	switch aws.ToString(expr) {
	case "":
		return true
	case "attribute_exists(id)":
		return exists
	case "attribute_not_exists(id)":
		return !exists
	}
	panic("fake dynamodb: unsupported condition " + aws.ToString(expr))
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: table[keyOf(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	id := keyOf(in.Item)
	_, exists := table[id]
	if !conditionHolds(in.ConditionExpression, exists) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	table[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	id := keyOf(in.Key)
	item, exists := table[id]
	if !conditionHolds(in.ConditionExpression, exists) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	if item == nil {
		item = map[string]types.AttributeValue{"id": in.Key["id"]}
	}
	updated := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		updated[k] = v
	}
	expr := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	for _, clause := range strings.Split(expr, ", ") {
		name, value, ok := strings.Cut(clause, " = ")
		if !ok {
			return nil, fmt.Errorf("fake dynamodb: unsupported update %q", clause)
		}
		if resolved, ok := in.ExpressionAttributeNames[name]; ok {
			name = resolved
		}
		updated[name] = in.ExpressionAttributeValues[value]
	}
	table[id] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, action := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		var (
			tableName *string
			id        string
			cond      *string
		)
		switch {
		case action.Put != nil:
			tableName, id, cond = action.Put.TableName, keyOf(action.Put.Item), action.Put.ConditionExpression
		case action.ConditionCheck != nil:
			tableName, id, cond = action.ConditionCheck.TableName, keyOf(action.ConditionCheck.Key), action.ConditionCheck.ConditionExpression
		default:
			return nil, fmt.Errorf("fake dynamodb: unsupported transact action %d", i)
		}
		table, err := f.table(tableName)
		if err != nil {
			return nil, err
		}
		_, exists := table[id]
		if !conditionHolds(cond, exists) {
			reasons[i] = types.CancellationReason{Code: aws.String(conditionalCheckFailed)}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, action := range in.TransactItems {
		if action.Put != nil {
			table, _ := f.table(action.Put.TableName)
			table[keyOf(action.Put.Item)] = action.Put.Item
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// Scan pages through items in id order, pageSize at a time.
func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	table, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := keyOf(in.ExclusiveStartKey)
		start = sort.SearchStrings(ids, after)
		if start < len(ids) && ids[start] == after {
			start++
		}
	}
	end := min(start+f.pageSize, len(ids))
	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, table[id])
	}
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: ids[end-1]}}
	}
	return out, nil
}

func (f *fakeAPI) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}
