package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"foodrescue/internal/usecase"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// テストで差し替えられるように *sqs.Client の必要な部分だけ
type SQSSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSNotifier struct {
	client   SQSSendAPI
	queueURL string
}

func NewSQSNotifier(client SQSSendAPI, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL}
}

// NewSQSNotifierFromEnv は標準の認証情報チェーンでクライアントを作る
func NewSQSNotifierFromEnv(ctx context.Context, region string, queueURL string) (*SQSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSNotifier(sqs.NewFromConfig(cfg), queueURL), nil
}

func (n *SQSNotifier) Notify(ctx context.Context, ev usecase.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(string(ev.Type))},
			"order_id":   {DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatInt(ev.OrderID, 10))},
		},
	})
	return err
}
