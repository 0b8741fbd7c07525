package runtime

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// executeRequest is the body of POST /nodes/:name/execute.
// Items may be plain objects or {"json": {...}} records.
type executeRequest struct {
	Items          json.RawMessage `json:"items"`
	Parameters     map[string]any  `json:"parameters"`
	ContinueOnFail bool            `json:"continueOnFail"`
}

var wrongBodyFormatRes = gin.H{"message": "Wrong request body format"}

// NewHttpHandler registers the node host endpoints on g.
func NewHttpHandler(container *Container, runner *Runner, g *gin.Engine) {
	nodes := g.Group("/nodes")
	nodes.GET("", listNodes(container))
	nodes.GET("/:name", describeNode(container))
	nodes.POST("/:name/execute", executeNode(runner))
}

func listNodes(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"nodes": container.Descriptions()})
	}
}

func describeNode(container *Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		node, err := container.Node(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, node.Description())
	}
}

func executeNode(runner *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		batch, err := readBatch(c.Request.Body)
		if err != nil {
			slog.Warn("Rejected node execution request",
				"node", name,
				"path", c.Request.URL.Path,
				"error", err.Error())
			c.JSON(http.StatusBadRequest, wrongBodyFormatRes)
			return
		}

		result, err := runner.Run(c.Request.Context(), name, batch)
		if err != nil {
			toErrorResponse(c, result, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func readBatch(body io.Reader) (Batch, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return Batch{}, err
	}

	var req executeRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return Batch{}, err
		}
	}

	batch := Batch{
		Parameters:     req.Parameters,
		ContinueOnFail: req.ContinueOnFail,
	}
	if len(req.Items) > 0 && string(req.Items) != "null" {
		items, err := ParseItems(req.Items)
		if err != nil {
			return Batch{}, err
		}
		batch.Items = items
	}
	return batch, nil
}

func toErrorResponse(c *gin.Context, result Result, err error) {
	if IsNodeNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}

	body := gin.H{
		"executionId": result.ExecutionID,
		"message":     "Error in node execution: " + err.Error(),
	}
	if kind := Kind(err); kind != ErrorKindUnknown {
		body["kind"] = string(kind)
	}

	var opErr *NodeOperationError
	if errors.As(err, &opErr) {
		if idx, ok := opErr.ItemIndex(); ok {
			body["itemIndex"] = idx
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}

	c.JSON(http.StatusInternalServerError, body)
}
