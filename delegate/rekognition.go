package delegate

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LabelDetector is the subset of the Rekognition client used by the backend.
type LabelDetector interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionBackend uses AWS Rekognition label detection.
type RekognitionBackend struct {
	client        LabelDetector
	maxLabels     int32
	minConfidence float32
	logger        *zap.Logger
}

// NewRekognitionBackend loads the default AWS credential chain for region and
// creates a Rekognition backend.
//
// Arguments:
// - ctx: Used while loading credentials.
// - region: The AWS region.
// - maxLabels: Maximum labels per image.
// - minConfidence: Minimum label confidence in percent.
// - logger: Logger for label counts; nil disables logging.
//
// Returns:
// - *RekognitionBackend: The backend.
// - error: An error if the AWS configuration cannot be loaded.
func NewRekognitionBackend(ctx context.Context, region string, maxLabels int, minConfidence float64, logger *zap.Logger) (*RekognitionBackend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return NewRekognitionBackendWithClient(rekognition.NewFromConfig(cfg), maxLabels, minConfidence, logger), nil
}

// NewRekognitionBackendWithClient creates a backend around an existing client.
func NewRekognitionBackendWithClient(client LabelDetector, maxLabels int, minConfidence float64, logger *zap.Logger) *RekognitionBackend {
	return &RekognitionBackend{
		client:        client,
		maxLabels:     int32(maxLabels),
		minConfidence: float32(minConfidence),
		logger:        logging.Component(logger, "delegate_rekognition"),
	}
}

// Name implements Backend.
func (b *RekognitionBackend) Name() string { return BackendRekognition }

// Detect implements Backend.
func (b *RekognitionBackend) Detect(ctx context.Context, req Request) ([]common.Candidate, error) {
	out, err := b.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: req.Image},
		MaxLabels:     aws.Int32(b.maxLabels),
		MinConfidence: aws.Float32(b.minConfidence),
	})
	if err != nil {
		return nil, errors.Wrap(err, "rekognition detect labels")
	}
	if out == nil {
		return nil, ErrEmptyResponse
	}

	candidates := make([]common.Candidate, 0, len(out.Labels))
	for _, label := range out.Labels {
		name := NormalizeName(aws.ToString(label.Name))
		if name == "" {
			continue
		}
		c := common.Candidate{
			Name:       name,
			Confidence: clamp01(float64(aws.ToFloat32(label.Confidence)) / 100),
			Method:     common.MethodDelegate,
		}
		if len(label.Instances) > 0 {
			c.BBox = relativeBox(label.Instances[0].BoundingBox, req.Width, req.Height)
		}
		candidates = append(candidates, c)
	}

	b.logger.Debug("rekognition labels", zap.Int("labels", len(candidates)))
	return candidates, nil
}

// relativeBox converts a Rekognition ratio box into pixels.
func relativeBox(bb *types.BoundingBox, width, height int) *common.BoundingBox {
	if bb == nil || width <= 0 || height <= 0 {
		return nil
	}
	left := float64(aws.ToFloat32(bb.Left)) * float64(width)
	top := float64(aws.ToFloat32(bb.Top)) * float64(height)
	return validBox(&common.BoundingBox{
		X1: left,
		Y1: top,
		X2: left + float64(aws.ToFloat32(bb.Width))*float64(width),
		Y2: top + float64(aws.ToFloat32(bb.Height))*float64(height),
	})
}
