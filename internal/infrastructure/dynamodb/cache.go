package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/bookstore-proxy/configs"
	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/connstate"
)

const keyAttribute = "cache_key"

// ValidationError is returned by New when the store cannot be built.
type ValidationError struct {
	Reason string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("creation of dynamodb cache failed: %s", ve.Reason)
}

// API is the subset of *dynamodb.Client used by Cache.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type Config struct {
	Table         string
	KeyPrefix     string
	ProbeInterval time.Duration
	// CreateTable creates the table on first probe when it does not exist.
	CreateTable bool
}

// Cache implements ports.Cache on a DynamoDB table keyed by cache_key.
// Expiry is checked on read; expires_at is also usable as the table's TTL
// attribute.
type Cache struct {
	client  API
	table   string
	prefix  string
	create  bool
	monitor *connstate.Monitor
	now     func() time.Time
}

type cacheItem struct {
	CacheKey  string `dynamodbav:"cache_key"`
	Value     []byte `dynamodbav:"value"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// NewClient builds a DynamoDB client from the default AWS credential chain.
func NewClient(ctx context.Context, cfg *configs.DynamoDBConfig) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func New(client API, cfg *Config, logger *logrus.Logger) (*Cache, error) {
	if client == nil {
		return nil, ValidationError{Reason: "nil client"}
	}
	if cfg == nil || cfg.Table == "" {
		return nil, ValidationError{Reason: "table name is required"}
	}
	c := &Cache{
		client: client,
		table:  cfg.Table,
		prefix: cfg.KeyPrefix,
		create: cfg.CreateTable,
		now:    time.Now,
	}
	c.monitor = connstate.NewMonitor("dynamodb", c.probe, connstate.Config{Interval: cfg.ProbeInterval}, logger)
	return c, nil
}

// probe succeeds once the table accepts reads and writes. A freshly created
// table reports CREATING for a while; the store stays unavailable until a
// later probe sees it ACTIVE.
func (c *Cache) probe(ctx context.Context) error {
	out, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.table)})
	var notFound *types.ResourceNotFoundException
	if c.create && errors.As(err, &notFound) {
		if err := c.createTable(ctx); err != nil {
			return err
		}
		return fmt.Errorf("table %s created, waiting for it to become active", c.table)
	}
	if err != nil {
		return err
	}
	if out.Table == nil {
		return fmt.Errorf("table %s: empty description", c.table)
	}
	switch out.Table.TableStatus {
	case types.TableStatusActive, types.TableStatusUpdating:
		return nil
	default:
		return fmt.Errorf("table %s is %s", c.table, out.Table.TableStatus)
	}
}

func (c *Cache) createTable(ctx context.Context) error {
	_, err := c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(keyAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(keyAttribute), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", c.table, err)
	}
	return nil
}

func (c *Cache) namespaced(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *Cache) Connect(ctx context.Context) error {
	return c.monitor.Start(ctx)
}

func (c *Cache) IsReady() bool {
	return c.monitor.IsReady()
}

func (c *Cache) State() connstate.State {
	return c.monitor.State()
}

func (c *Cache) Get(ctx context.Context, k string) ([]byte, bool, error) {
	if !c.IsReady() {
		return nil, false, proxy.ErrCacheUnavailable
	}
	key, err := attributevalue.Marshal(c.namespaced(k))
	if err != nil {
		return nil, false, proxy.CacheFailure("get", err)
	}

	output, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		Key: map[string]types.AttributeValue{
			keyAttribute: key,
		},
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(c.table),
	})
	if err != nil {
		return nil, false, proxy.CacheFailure("get", err)
	}
	if output.Item == nil {
		return nil, false, nil
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, false, proxy.CacheFailure("get", err)
	}
	if c.now().UTC().Unix() >= item.ExpiresAt {
		return nil, false, nil
	}
	return item.Value, true, nil
}

func (c *Cache) SetEx(ctx context.Context, k string, ttl time.Duration, value []byte) error {
	if !c.IsReady() {
		return proxy.ErrCacheUnavailable
	}
	now := c.now().UTC()
	av, err := attributevalue.MarshalMap(cacheItem{
		CacheKey:  c.namespaced(k),
		Value:     value,
		UpdatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return proxy.CacheFailure("set", err)
	}

	if _, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      av,
	}); err != nil {
		return proxy.CacheFailure("set", err)
	}
	return nil
}

// Close stops probing. The SDK client holds no connections that need closing.
func (c *Cache) Close() error {
	c.monitor.Stop()
	return nil
}
