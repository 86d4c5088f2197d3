package main

import (
	"context"
	"log"
	"time"

	"admission-chatbot-be/internal/config"
	"admission-chatbot-be/internal/entity"
	"admission-chatbot-be/internal/repository/implementation"
	"admission-chatbot-be/pkg/database"
	"admission-chatbot-be/pkg/embedding"

	"github.com/google/uuid"
)

// Seeds a small admissions knowledge base so the chatbot answers something
// useful on a fresh install.
var documents = []struct {
	Title  string
	Chunks []string
}{
	{
		Title: "Undergraduate Tuition 2026",
		Chunks: []string{
			"Tuition for the Computer Science major is $11,200 per academic year. Laboratory fees of $350 per semester apply from the second year onward.",
			"Tuition for the Business Administration major is $9,800 per academic year. There are no additional laboratory fees.",
			"Tuition for the Nursing major is $12,500 per academic year, including clinical placement fees.",
		},
	},
	{
		Title: "Application Deadlines",
		Chunks: []string{
			"Early admission applications close on November 15. Regular admission applications close on January 31. Transfer applications are accepted until March 15.",
			"International applicants must submit all documents, including English proficiency scores, by January 10.",
		},
	},
	{
		Title: "Scholarships and Financial Aid",
		Chunks: []string{
			"The Merit Scholarship covers up to 50% of tuition for applicants with a GPA of 3.8 or higher. It is renewable each year the student maintains a 3.5 GPA.",
			"Need-based grants between $1,000 and $6,000 per year are available. The FAFSA deadline for priority consideration is February 1.",
		},
	},
	{
		Title: "Campus Housing",
		Chunks: []string{
			"First-year students are guaranteed on-campus housing. A standard double room costs $4,200 per semester, including a basic meal plan.",
			"Apartment-style housing for upper-year students costs $5,600 per semester without a meal plan.",
		},
	},
	{
		Title: "Admission Requirements",
		Chunks: []string{
			"Applicants need a high school diploma with a minimum GPA of 3.0. The Computer Science major additionally requires pre-calculus.",
			"International applicants need a TOEFL iBT score of at least 80 or an IELTS score of at least 6.5.",
		},
	},
}

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Error: Failed to connect to database: %v", err)
	}

	var provider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		provider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else {
		provider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	}

	chunkRepo := implementation.NewDocumentChunkRepository(db)
	ctx := context.Background()

	total := 0
	for _, doc := range documents {
		documentId := uuid.New()
		chunks := make([]*entity.DocumentChunk, 0, len(doc.Chunks))

		for i, content := range doc.Chunks {
			resp, err := provider.Generate(ctx, content, "RETRIEVAL_DOCUMENT")
			if err != nil {
				log.Fatalf("Error: Failed to embed chunk of %q: %v", doc.Title, err)
			}

			chunks = append(chunks, &entity.DocumentChunk{
				Id:         uuid.New(),
				DocumentId: documentId,
				Title:      doc.Title,
				Content:    content,
				Embedding:  resp.Embedding.Values,
				ChunkIndex: i,
				CreatedAt:  time.Now(),
			})
		}

		if err := chunkRepo.CreateBulk(ctx, chunks); err != nil {
			log.Fatalf("Error: Failed to insert chunks of %q: %v", doc.Title, err)
		}
		total += len(chunks)
		log.Printf("Seeded %q (%d chunks)", doc.Title, len(chunks))
	}

	log.Printf("✅ Success: Seeded %d chunks across %d documents", total, len(documents))
}
