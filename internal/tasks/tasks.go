package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/config"
	"github.com/sadaltman/hackiiit-bsr/internal/email"
	"github.com/sadaltman/hackiiit-bsr/internal/services"
	"github.com/sadaltman/hackiiit-bsr/internal/storage"
)

// Task types.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
)

// NewClient creates an asynq client sharing the app's Redis connection
// settings.
func NewClient(rdb *redis.Client) *asynq.Client {
	opts := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// EmailTaskPayload carries a rendered notification addressed to a user.
type EmailTaskPayload struct {
	RecipientID string `json:"recipient_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// ImageTaskPayload identifies an uploaded listing image to normalize.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id"`
	OwnerID   string `json:"owner_id"`
}

// Notifier enqueues email tasks. It satisfies services.IDecisionNotifier.
type Notifier struct {
	client *asynq.Client
}

// NewNotifier wraps an asynq client for use by the purchase service.
func NewNotifier(client *asynq.Client) *Notifier {
	return &Notifier{client: client}
}

// EnqueueDecisionEmail queues a purchase-decision notification on the default
// queue.
func (n *Notifier) EnqueueDecisionEmail(ctx context.Context, recipientID primitive.ObjectID, subject, body string) error {
	payload, err := json.Marshal(EmailTaskPayload{
		RecipientID: recipientID.Hex(),
		Subject:     subject,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	task := asynq.NewTask(TypeEmailDelivery, payload)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue("default"), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("failed to enqueue email task: %w", err)
	}
	return nil
}

// EnqueueImageProcess queues normalization of a freshly uploaded listing
// image on the images queue.
func EnqueueImageProcess(ctx context.Context, client *asynq.Client, s3Key string, listingID, ownerID primitive.ObjectID) error {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: s3Key, ListingID: listingID.Hex(), OwnerID: ownerID.Hex()})
	if err != nil {
		return fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	task := asynq.NewTask(TypeImageProcess, payload)
	if _, err := client.EnqueueContext(ctx, task, asynq.Queue("images"), asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("failed to enqueue image task: %w", err)
	}
	return nil
}

// TaskProcessor holds the dependencies task handlers need.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	storageService storage.IS3Storage
	listingService services.IListingService
	userService    services.IUserService
}

// NewTaskProcessor creates a new TaskProcessor.
func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	listingService services.IListingService,
	userService services.IUserService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		storageService: storageService,
		listingService: listingService,
		userService:    userService,
	}
}

// SetupServer configures an asynq server, registers the handlers and runs it.
// Blocks until the server stops.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) error {
	opts := rdb.Options()
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB},
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"images":   5,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)

	log.Println("Registered background task handlers.")
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("asynq server stopped: %w", err)
	}
	return nil
}

// HandleEmailDeliveryTask resolves the recipient's address and sends the
// notification.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	recipientID, err := primitive.ObjectIDFromHex(payload.RecipientID)
	if err != nil {
		return fmt.Errorf("invalid recipient ID in payload: %w", asynq.SkipRetry)
	}

	user, err := p.userService.FindUserByID(ctx, recipientID)
	if err != nil {
		// A deleted account is not a reason to retry.
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("recipient no longer exists: %w", asynq.SkipRetry)
		}
		return err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", user.Email))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", p.cfg.SmtpFromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", payload.Subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(payload.Body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{user.Email}, payload.Subject, []byte(sb.String())); err != nil {
		return err
	}
	log.Printf("Email task processed: To=%s, Subject=%s", user.Email, payload.Subject)
	return nil
}

// HandleImageProcessTask downloads an uploaded listing image, shrinks it to
// the configured bounds if needed, writes it back and records the key on the
// listing.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	listingID, err := primitive.ObjectIDFromHex(payload.ListingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
	}
	ownerID, err := primitive.ObjectIDFromHex(payload.OwnerID)
	if err != nil {
		return fmt.Errorf("invalid owner ID in payload: %w", asynq.SkipRetry)
	}

	imgData, contentType, err := p.storageService.DownloadObject(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download image from S3: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.ImageMaxDimension)
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		imgData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resized.Bounds().Dx(), resized.Bounds().Dy())

		if err := p.storageService.UploadObject(ctx, payload.S3Key, contentType, imgData); err != nil {
			return fmt.Errorf("failed to upload processed image: %w", err)
		}
	}

	if err := p.listingService.SetImageKey(ctx, listingID, ownerID, payload.S3Key); err != nil {
		return fmt.Errorf("failed to record image on listing: %w", err)
	}
	log.Printf("Image task processed: Key=%s, ListingID=%s", payload.S3Key, payload.ListingID)
	return nil
}
