package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// seed-assessment inserts a demo assessment covering every question type.
func main() {
	var instructorID, timeLimit, maxAttempts int
	flag.IntVar(&instructorID, "instructor", 1, "Owning instructor's user id")
	flag.IntVar(&timeLimit, "time-limit", 15, "Time limit in minutes, 0 for untimed")
	flag.IntVar(&maxAttempts, "max-attempts", 3, "Attempt limit, 0 for unlimited")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	assessmentRepo := repository.NewAssessmentRepository(pool)

	explain := "Go schedules goroutines onto OS threads with its own runtime scheduler."
	a := &model.Assessment{
		CourseID:            uuid.New(),
		InstructorID:        instructorID,
		Title:               "Go Concurrency Basics",
		PassingScorePercent: 70,
		ShowResults:         true,
		ShowCorrectAnswers:  true,
		PointsReward:        50,
		Questions: []model.Question{
			{
				Type:           model.QuestionTypeMultipleChoice,
				Prompt:         "Which keyword starts a goroutine?",
				Points:         2,
				Options:        []string{"defer", "go", "async", "spawn"},
				CorrectAnswers: mustJSON(1),
				Explanation:    &explain,
			},
			{
				Type:           model.QuestionTypeMultipleChoice,
				Prompt:         "Which types are reference-like? (select all)",
				Points:         3,
				Options:        []string{"map", "array", "slice", "struct"},
				AllowMultiple:  true,
				CorrectAnswers: mustJSON([]int{0, 2}),
			},
			{
				Type:           model.QuestionTypeTrueFalse,
				Prompt:         "Sending on a closed channel panics.",
				Points:         1,
				CorrectAnswers: mustJSON(true),
			},
			{
				Type:           model.QuestionTypeShortAnswer,
				Prompt:         "Name the package that provides WaitGroup.",
				Points:         2,
				CorrectAnswers: mustJSON([]string{"sync"}),
			},
			{
				Type:   model.QuestionTypeEssay,
				Prompt: "Explain when you would choose a mutex over a channel.",
				Points: 5,
			},
		},
	}
	for i := range a.Questions {
		a.Questions[i].OrderNum = i + 1
	}
	if timeLimit > 0 {
		a.TimeLimitMinutes = &timeLimit
	}
	if maxAttempts > 0 {
		a.MaxAttempts = &maxAttempts
	}

	if err := assessmentRepo.Create(ctx, a); err != nil {
		log.Fatal().Err(err).Msg("Failed to create assessment")
	}

	fmt.Printf("Seeded assessment %q with ID: %s\n", a.Title, a.ID)
	for _, q := range a.Questions {
		fmt.Printf("  %d. [%s] %s (%s)\n", q.OrderNum, q.Type, q.Prompt, q.ID)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
