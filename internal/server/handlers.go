package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/ragchat/internal/apperr"
	"github.com/xaenox/ragchat/internal/chat"
)

type uploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

type chatResponse struct {
	Answer         string `json:"answer"`
	ConversationID int64  `json:"conversation_id"`
}

type errorResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "RAG chat service is running"})
}

func (s *Server) handleUploadPDF(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		s.writeError(c, apperr.New(apperr.CodeValidation, "missing_user_id", nil))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, apperr.New(apperr.CodeValidation, "missing_file", err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, apperr.New(apperr.CodeValidation, "unreadable_file", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(c, apperr.New(apperr.CodeValidation, "unreadable_file", err))
		return
	}

	result, err := s.ingestor.Ingest(c.Request.Context(), data, fileHeader.Filename, userID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Status:  "success",
		Message: fmt.Sprintf("%s ingested", fileHeader.Filename),
		Chunks:  result.ChunkCount,
	})
}

func (s *Server) handleChat(c *gin.Context) {
	req := chat.Request{
		UserID:  c.PostForm("user_id"),
		Message: c.PostForm("message"),
	}
	if raw := c.PostForm("conversation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(c, apperr.New(apperr.CodeValidation, "bad_conversation_id", err))
			return
		}
		req.ConversationID = id
	}

	result, err := s.answerer.Answer(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		Answer:         result.Answer,
		ConversationID: result.ConversationID,
	})
}

// writeError maps pipeline error codes to distinct HTTP statuses; failures
// are never flattened into a generic 200.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		code = string(appErr.Code)
		switch appErr.Code {
		case apperr.CodeValidation:
			status = http.StatusBadRequest
		case apperr.CodeExtraction:
			status = http.StatusUnprocessableEntity
		case apperr.CodeEmbedding, apperr.CodeRetrieval, apperr.CodeCompletion:
			status = http.StatusBadGateway
		case apperr.CodePersistence:
			status = http.StatusInternalServerError
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	} else {
		s.logger.Warn("request rejected", zap.String("code", code), zap.Error(err))
	}

	c.JSON(status, errorResponse{
		Status: "error",
		Code:   code,
		Error:  err.Error(),
	})
}
