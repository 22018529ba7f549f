package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kidney-chain-server/internal/domain"
)

// uploadField is the multipart field the web client posts graph files under
const uploadField = "uploads[]"

// rawBodyName names a graph posted as a plain JSON body in the upload response
const rawBodyName = "request-body"

// handleUpload loads one or more compatibility graphs and responds with {hash: filename}.
func (s *Server) handleUpload(c *gin.Context) {
	maxSize := s.configManager.GetServerConfig().MaxUploadSize
	if maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
	}

	loaded := make(map[string]string)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeError(c, err)
				return
			}
			invalidInput(c, "Invalid multipart upload", err)
			return
		}
		files := form.File[uploadField]
		if len(files) == 0 {
			files = form.File["uploads"]
		}
		if len(files) == 0 {
			invalidInput(c, fmt.Sprintf("No graph files found in field %q", uploadField), nil)
			return
		}
		for _, fh := range files {
			raw, err := readFormFile(fh)
			if err != nil {
				invalidInput(c, fmt.Sprintf("Failed to read %s", fh.Filename), err)
				return
			}
			hash, err := s.chains.LoadGraph(c.Request.Context(), raw)
			if err != nil {
				s.writeError(c, fmt.Errorf("%s: %w", fh.Filename, err))
				return
			}
			loaded[hash] = fh.Filename
		}
		c.JSON(http.StatusOK, loaded)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.writeError(c, err)
		return
	}
	hash, err := s.chains.LoadGraph(c.Request.Context(), raw)
	if err != nil {
		s.writeError(c, err)
		return
	}
	loaded[hash] = rawBodyName
	c.JSON(http.StatusOK, loaded)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleSummary(c *gin.Context) {
	s.respondSummary(c, c.Param("id"))
}

func (s *Server) handleBuildChain(c *gin.Context) {
	var body chainRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		invalidInput(c, "Invalid chain request", err)
		return
	}
	req := body.toRequest()
	req.GraphID = c.Param("id")
	s.respondChain(c, req)
}

func (s *Server) handleExport(c *gin.Context) {
	s.respondExport(c, c.Param("id"))
}

func (s *Server) handleLog(c *gin.Context) {
	s.respondLog(c, c.Param("id"))
}

// handleRelatedDonors lists a recipient's related donors, the next chain starters once its
// transplant is confirmed.
func (s *Server) handleRelatedDonors(c *gin.Context) {
	var depth *int
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(c, domain.NewValidationError("depth", "must be an integer", raw))
			return
		}
		depth = &d
	}

	info, err := s.chains.RelatedDonors(c.Request.Context(), c.Param("id"), c.Param("rid"), depth)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleLegacyBuildChain(c *gin.Context) {
	var body chainRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		invalidInput(c, "Invalid chain request", err)
		return
	}
	req := body.toRequest()
	if req.GraphID == "" {
		s.writeError(c, domain.NewValidationError("id", "is required", ""))
		return
	}
	s.respondChain(c, req)
}

func (s *Server) handleLegacySummary(c *gin.Context) {
	if id, ok := s.queryID(c); ok {
		s.respondSummary(c, id)
	}
}

func (s *Server) handleLegacyExport(c *gin.Context) {
	if id, ok := s.queryID(c); ok {
		s.respondExport(c, id)
	}
}

func (s *Server) handleLegacyLog(c *gin.Context) {
	if id, ok := s.queryID(c); ok {
		s.respondLog(c, id)
	}
}

func (s *Server) queryID(c *gin.Context) (string, bool) {
	id := c.Query("id")
	if id == "" {
		s.writeError(c, domain.NewValidationError("id", "is required", ""))
		return "", false
	}
	return id, true
}

func (s *Server) respondSummary(c *gin.Context, id string) {
	summary, err := s.chains.Summary(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          id,
		"origin":      summary.Origin,
		"description": summary.Description,
		"altruists":   summary.Altruists,
	})
}

func (s *Server) respondChain(c *gin.Context, req domain.ChainRequest) {
	report, err := s.chains.BuildChain(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report.Chain)
}

func (s *Server) respondExport(c *gin.Context, id string) {
	graph, err := s.chains.Export(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", attachment(id, "json"))
	c.JSON(http.StatusOK, graph)
}

func (s *Server) respondLog(c *gin.Context, id string) {
	text, err := s.chains.Report(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", attachment(id, "log"))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func attachment(id, ext string) string {
	name := id
	if len(name) > 12 {
		name = name[:12]
	}
	return fmt.Sprintf(`attachment; filename="%s.%s"`, name, ext)
}
