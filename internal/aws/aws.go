package aws

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/go-redis/redis/v8"
	"moff.io/hedera-dapp/pkg/errors"
)

var (
	Client *Clients
)

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Init builds Client from the default credential chain. dedup backs the
// SQS worker's message deduplication.
func Init(ctx context.Context, region, bucketName string, dedup redis.Cmdable) error {
	if region == "" {
		return errors.New("aws region not present")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return errors.Wrap(err, "load aws sdk config")
	}
	Client = NewClients(region, bucketName, s3.NewFromConfig(cfg), ssm.NewFromConfig(cfg), sqs.NewFromConfig(cfg), dedup)
	return nil
}

// NewClients builds Clients over the given service clients. A nil dedup,
// including a nil *redis.Client, disables SQS message deduplication.
func NewClients(region, bucketName string, s3Client S3API, ssmClient SSMAPI, sqsClient SQSAPI, dedup redis.Cmdable) *Clients {
	if c, ok := dedup.(*redis.Client); ok && c == nil {
		dedup = nil
	}
	return &Clients{
		bucketName: bucketName,
		region:     region,
		s3Client:   s3Client,
		ssmClient:  ssmClient,
		sqsClient:  sqsClient,
		dedup:      dedup,
	}
}

type Clients struct {
	bucketName string
	region     string
	s3Client   S3API
	ssmClient  SSMAPI
	sqsClient  SQSAPI
	dedup      redis.Cmdable
}

func (s *Clients) GetParameterFromSSM(ctx context.Context, paramName string) (*ssmtypes.Parameter, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: true,
	}
	parameter, err := s.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return nil, errors.WrapfAndReport(err, "query parameter %s from ssm", paramName)
	}
	if parameter.Parameter == nil {
		return nil, errors.Errorf("ssm parameter %s has no value", paramName)
	}
	return parameter.Parameter, nil
}

// GetSSMParameterValue returns the decrypted string value of paramName.
func (s *Clients) GetSSMParameterValue(ctx context.Context, paramName string) (string, error) {
	parameter, err := s.GetParameterFromSSM(ctx, paramName)
	if err != nil {
		return "", err
	}
	return aws.ToString(parameter.Value), nil
}

// HasBucket reports whether a public bucket is configured.
func (s *Clients) HasBucket() bool {
	return s.bucketName != ""
}

func (s *Clients) PutFileToS3WithPublicRead(ctx context.Context, key, contentType string, file io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
		Body:        file,
	}
	_, err := s.s3Client.PutObject(ctx, input)
	return errors.WrapAndReport(err, "put object to s3")
}

const (
	httpsStr  = "https://"
	s3DotStr  = ".s3."
	amazonStr = ".amazonaws.com/"
)

func (s *Clients) PublicS3AccessURLFrom(key string) string {
	var buf bytes.Buffer
	buf.WriteString(httpsStr)
	buf.WriteString(s.bucketName)
	buf.WriteString(s3DotStr)
	buf.WriteString(s.region)
	buf.WriteString(amazonStr)
	buf.WriteString(key)
	return buf.String()
}
