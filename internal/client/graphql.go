// Session Bridge가 GraphQL API를 호출할 때 사용하는 HTTP 클라이언트
//
// 환경변수:
//   - GRAPHQL_ENDPOINT: GraphQL 엔드포인트 URL (기본값 http://localhost:$PORT/graphql)

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kube-rca/todo/internal/model"
)

// GraphQLClient 구조체 정의
type GraphQLClient struct {
	endpoint   string
	httpClient *http.Client
}

// GraphQLError - 응답의 errors 배열. 첫 번째 에러의 code로 분기할 수 있다.
type GraphQLError struct {
	Errors []model.GraphQLError
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Message)
	}
	return strings.Join(msgs, ", ")
}

// HasCode reports whether any error carries extensions.code == code.
func (e *GraphQLError) HasCode(code string) bool {
	for _, err := range e.Errors {
		if c, _ := err.Extensions["code"].(string); c == code {
			return true
		}
	}
	return false
}

type graphQLEnvelope struct {
	Data   json.RawMessage      `json:"data"`
	Errors []model.GraphQLError `json:"errors"`
}

// GraphQLClient 객체 생성
func NewGraphQLClient(endpoint string) *GraphQLClient {
	return &GraphQLClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Do - query를 실행하고 data를 out에 디코딩한다. token이 있으면 Bearer로 전달.
func (c *GraphQLClient) Do(ctx context.Context, query string, variables map[string]any, token string, out any) error {
	payload, err := json.Marshal(model.GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach graphql endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql endpoint returned status: %d", resp.StatusCode)
	}

	var env graphQLEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(env.Errors) > 0 {
		return &GraphQLError{Errors: env.Errors}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}
