package unitofwork

import (
	"context"

	"admission-chatbot-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	ChatMessageRepository() contract.ChatMessageRepository
	VerificationTaskRepository() contract.VerificationTaskRepository
	DocumentChunkRepository() contract.DocumentChunkRepository
}
