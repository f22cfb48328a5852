package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockExtractor reads documents with a Bedrock Converse model.
type BedrockExtractor struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockExtractor(api bedrockConverseAPI, modelID string) (*BedrockExtractor, error) {
	if api == nil {
		return nil, errors.New("ocr: bedrock client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("ocr: bedrock model id is required")
	}
	return &BedrockExtractor{api: api, modelID: modelID}, nil
}

func (b *BedrockExtractor) Provider() string { return "bedrock" }

func (b *BedrockExtractor) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	block, err := bedrockDocumentBlock(doc)
	if err != nil {
		return "", err
	}
	out, err := b.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				block,
				&brtypes.ContentBlockMemberText{Value: prompt},
			},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			Temperature: aws.Float32(0),
			MaxTokens:   aws.Int32(1024),
		},
	})
	if err != nil {
		return "", fmt.Errorf("ocr: bedrock request failed: %w", err)
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || len(msgOut.Value.Content) == 0 {
		return "", errors.New("ocr: bedrock response did not include a message")
	}
	var text strings.Builder
	for _, c := range msgOut.Value.Content {
		if t, ok := c.(*brtypes.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}
	return text.String(), nil
}

func bedrockDocumentBlock(doc Document) (brtypes.ContentBlock, error) {
	switch strings.ToLower(doc.MIMEType) {
	case "image/png":
		return imageBlock(brtypes.ImageFormatPng, doc.Data), nil
	case "image/jpeg", "image/jpg":
		return imageBlock(brtypes.ImageFormatJpeg, doc.Data), nil
	case "image/webp":
		return imageBlock(brtypes.ImageFormatWebp, doc.Data), nil
	case "image/gif":
		return imageBlock(brtypes.ImageFormatGif, doc.Data), nil
	case "application/pdf":
		return &brtypes.ContentBlockMemberDocument{Value: brtypes.DocumentBlock{
			Format: brtypes.DocumentFormatPdf,
			Name:   aws.String("attestation"),
			Source: &brtypes.DocumentSourceMemberBytes{Value: doc.Data},
		}}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, doc.MIMEType)
}

func imageBlock(format brtypes.ImageFormat, data []byte) brtypes.ContentBlock {
	return &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
		Format: format,
		Source: &brtypes.ImageSourceMemberBytes{Value: data},
	}}
}
