package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "supportdesk-backend/cmd/api"
	authRepo "supportdesk-backend/internal/auth/repository"
	authUsecase "supportdesk-backend/internal/auth/usecase"
	emailDelivery "supportdesk-backend/internal/email/delivery"
	emailRepo "supportdesk-backend/internal/email/repository"
	"supportdesk-backend/internal/email/scheduler"
	emailUsecase "supportdesk-backend/internal/email/usecase"
	"supportdesk-backend/internal/notification"
	"supportdesk-backend/pkg/ai"
	"supportdesk-backend/pkg/chroma"
	"supportdesk-backend/pkg/config"
	"supportdesk-backend/pkg/database"
	"supportdesk-backend/pkg/fcm"
	"supportdesk-backend/pkg/gmail"
	"supportdesk-backend/pkg/imap"
	"supportdesk-backend/pkg/logger"
	"supportdesk-backend/pkg/mailer"
	"supportdesk-backend/pkg/sse"

	"go.uber.org/zap"
)

const sampleCSVPath = "data/sample_emails.csv"

// app holds the wired components shared by every command
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	sse       *sse.Manager
	kb        *chroma.KnowledgeBase
	smtp      *mailer.SMTPDispatcher
	gmail     *gmail.Service
	processor *emailUsecase.EmailProcessor
	emails    emailUsecase.EmailUsecase
	scheduler *scheduler.FetchScheduler
	handler   *api.Handler
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log}

	// Storage: Postgres when configured, in-memory otherwise
	var (
		emailRepository  emailRepo.EmailRepository
		agentRepository  authRepo.AgentRepository
		deviceRepository authRepo.DeviceTokenRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresConnection(cfg, logger.Named(log, "db"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if emailRepository, err = emailRepo.NewEmailRepository(db); err != nil {
			return nil, fmt.Errorf("failed to migrate emails: %w", err)
		}
		if agentRepository, err = authRepo.NewAgentRepository(db); err != nil {
			return nil, fmt.Errorf("failed to migrate agents: %w", err)
		}
		if deviceRepository, err = authRepo.NewDeviceTokenRepository(db); err != nil {
			return nil, fmt.Errorf("failed to migrate device tokens: %w", err)
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		emailRepository = emailRepo.NewMemoryEmailRepository()
		agentRepository = authRepo.NewMemoryAgentRepository()
		deviceRepository = authRepo.NewMemoryDeviceTokenRepository()
	}

	a.sse = sse.NewManager(logger.Named(log, "sse"))
	go a.sse.Run()

	caps := emailUsecase.Capabilities{Events: a.sse}

	// Knowledge base
	if kb, err := chroma.NewKnowledgeBase(cfg, logger.Named(log, "kb")); err != nil {
		log.Warn("knowledge base disabled", zap.Error(err))
	} else {
		a.kb = kb
		caps.Retriever = kb
	}

	// Draft generation
	api.InitRuntimeConfig(cfg.OllamaBaseURL, cfg.OllamaModel)
	draftService, err := ai.NewDraftService(ai.DynamicConfig{
		Provider:         ai.ProviderType(cfg.AIProvider),
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: api.GetRuntimeOllamaBaseURL,
		GetOllamaModel:   api.GetRuntimeOllamaModel,
	}, logger.Named(log, "ai"))
	if err != nil {
		log.Warn("draft generation disabled, using the fallback draft", zap.Error(err))
	} else {
		caps.Generator = draftService
		log.Info("draft generation enabled", zap.String("provider", cfg.AIProvider))
	}

	// Outbound mail
	if dispatcher, err := mailer.New(cfg, logger.Named(log, "mailer")); err != nil {
		log.Warn("reply sending disabled", zap.Error(err))
	} else {
		caps.Dispatcher = dispatcher
		if smtp, ok := dispatcher.(*mailer.SMTPDispatcher); ok {
			a.smtp = smtp
		}
	}

	// Inbound mail
	switch cfg.MailSource {
	case "imap":
		source, err := imap.NewService(imap.Config{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			User:     cfg.IMAPUser,
			Password: cfg.IMAPPassword,
			TLS:      cfg.IMAPTLS,
			Mailbox:  cfg.IMAPMailbox,
		}, logger.Named(log, "imap"))
		if err != nil {
			log.Warn("imap fetching disabled", zap.Error(err))
		} else {
			caps.Source = source
		}
	case "gmail":
		source, err := gmail.NewService(ctx, gmail.Config{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			RefreshToken: cfg.GmailRefreshToken,
			Query:        cfg.GmailQuery,
		}, logger.Named(log, "gmail"))
		if err != nil {
			log.Warn("gmail fetching disabled", zap.Error(err))
		} else {
			a.gmail = source
			caps.Source = source
		}
	default:
		log.Info("mail fetching disabled", zap.String("mail_source", cfg.MailSource))
	}

	// Urgent alerts over SSE and FCM
	var push notification.PushSender
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, logger.Named(log, "fcm"))
		if err != nil {
			log.Warn("push notifications disabled", zap.Error(err))
		} else {
			push = fcmClient
		}
	}
	caps.Notifier = notification.NewUrgentAlerter(a.sse, push, deviceRepository, cfg.FCMTopic, logger.Named(log, "alerts"))

	pipelineCfg := emailUsecase.PipelineConfig{
		AutoSendUrgent: cfg.AutoSendUrgent,
		DefaultFrom:    cfg.DefaultFrom,
		BatchLimit:     cfg.BatchLimit,
	}
	a.processor = emailUsecase.NewEmailProcessor(emailRepository, pipelineCfg, caps, logger.Named(log, "pipeline"))
	sender := emailUsecase.NewReplyDispatcher(emailRepository, pipelineCfg, caps, logger.Named(log, "dispatcher"))
	batch := emailUsecase.NewBatchProcessor(emailRepository, a.processor, pipelineCfg, logger.Named(log, "batch"))
	a.emails = emailUsecase.NewEmailUsecase(emailRepository, a.processor, caps, logger.Named(log, "emails"))

	a.scheduler = scheduler.NewFetchScheduler(a.emails, batch, scheduler.Config{
		Enabled:    cfg.AutoFetch,
		Interval:   cfg.FetchInterval,
		BatchLimit: cfg.BatchLimit,
	}, logger.Named(log, "scheduler"))

	authUc := authUsecase.NewAuthUsecase(agentRepository, deviceRepository, cfg)
	emailHandler := emailDelivery.NewEmailHandler(a.emails, a.processor, sender, batch, sampleCSVPath, logger.Named(log, "http"))

	var kb api.SnippetStore
	if a.kb != nil {
		kb = a.kb
	}
	a.handler = api.NewHandler(authUc, emailHandler, a.processor, kb, a.sse, cfg, logger.Named(log, "http"))
	return a, nil
}

// startPushTrigger listens for Gmail push notifications and runs a fetch tick on each one
func (a *app) startPushTrigger(ctx context.Context) (*notification.Service, error) {
	cfg := a.cfg
	if cfg.GoogleProjectID == "" {
		return nil, nil
	}
	svc, err := notification.NewService(ctx, cfg.GoogleProjectID, cfg.PubSubTopic, cfg.PubSubSubscription, cfg.GoogleCredentials, a.scheduler, a.sse, logger.Named(a.logger, "pubsub"))
	if err != nil {
		return nil, err
	}
	go svc.Start(ctx)

	if a.gmail != nil {
		topic := cfg.PubSubTopic
		if !strings.Contains(topic, "/") {
			topic = fmt.Sprintf("projects/%s/topics/%s", cfg.GoogleProjectID, topic)
		}
		if _, err := a.gmail.Watch(ctx, topic); err != nil {
			a.logger.Warn("gmail watch failed, relying on the fetch interval", zap.Error(err))
		}
	}
	return svc, nil
}

// warmUp verifies the SMTP login and seeds the knowledge base. Failures are logged only.
func (a *app) warmUp(ctx context.Context) {
	if a.smtp != nil {
		verifyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := a.smtp.Verify(verifyCtx); err != nil {
			a.logger.Warn("smtp verification failed", zap.Error(err))
		} else {
			a.logger.Info("smtp connection verified")
		}
		cancel()
	}

	if a.kb != nil {
		snippets := chroma.DefaultSnippets()
		if a.cfg.KBSeedFile != "" {
			loaded, err := chroma.LoadSeed(a.cfg.KBSeedFile)
			if err != nil {
				a.logger.Warn("knowledge base seed file unreadable, using built-in snippets", zap.Error(err))
			} else {
				snippets = loaded
			}
		}
		if err := a.kb.Upsert(ctx, snippets...); err != nil {
			a.logger.Warn("knowledge base seeding failed", zap.Error(err))
		}
	}
}

func (a *app) close() {
	if a.kb != nil {
		if err := a.kb.Close(); err != nil {
			a.logger.Debug("knowledge base close failed", zap.Error(err))
		}
	}
}
