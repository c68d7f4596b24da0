package wechat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(zap.NewNop(), Options{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		RateLimitRPS:   100,
	})
}

func TestObtainCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/token", r.URL.Path)
		assert.Equal(t, "client_credential", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "app-1", r.URL.Query().Get("appid"))
		assert.Equal(t, "secret-1", r.URL.Query().Get("secret"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-abc",
			"expires_in":   7200,
		})
	}))
	defer srv.Close()

	cred, err := newTestClient(srv.URL).ObtainCredential(context.Background(), "app-1", "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", cred.AccessToken)
	assert.Equal(t, 7200, cred.ExpiresIn)
}

func TestObtainCredentialPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errcode": 40125,
			"errmsg":  "invalid appsecret",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ObtainCredential(context.Background(), "app-1", "bad")
	require.Error(t, err)

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, 40125, credErr.Code)
	assert.Equal(t, "invalid appsecret", credErr.Msg)
}

func TestPublishDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/freepublish/submit", r.URL.Path)
		assert.Equal(t, "tok-abc", r.URL.Query().Get("access_token"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "media-1", req["media_id"])

		// the platform returns numeric ids
		w.Write([]byte(`{"errcode":0,"errmsg":"ok","publish_id":2247483647,"msg_data_id":1000000001}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).PublishDraft(context.Background(),
		&Credential{AccessToken: "tok-abc"}, "media-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ErrCode)
	assert.Equal(t, "2247483647", result.PublishID)
	assert.Equal(t, "1000000001", result.MsgDataID)
}

func TestPublishDraftPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errcode":53503,"errmsg":"the article is being checked"}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).PublishDraft(context.Background(),
		&Credential{AccessToken: "tok-abc"}, "media-1")

	// application-level failures surface in the result, not the error return
	require.NoError(t, err)
	assert.Equal(t, 53503, result.ErrCode)
	assert.Equal(t, "the article is being checked", result.ErrMsg)
}

func TestPublishDraftTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newTestClient(srv.URL).PublishDraft(context.Background(),
		&Credential{AccessToken: "tok-abc"}, "media-1")
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "publish", transportErr.Op)
}

func TestMassSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/message/mass/send", r.URL.Path)

		var req struct {
			ToUser  []string `json:"touser"`
			MPNews  struct {
				MediaID string `json:"media_id"`
			} `json:"mpnews"`
			MsgType string `json:"msgtype"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotNil(t, req.ToUser)
		assert.Empty(t, req.ToUser, "empty touser broadcasts to all subscribers")
		assert.Equal(t, "pub-1", req.MPNews.MediaID)
		assert.Equal(t, "mpnews", req.MsgType)

		w.Write([]byte(`{"errcode":0,"errmsg":"send job submission success","msg_id":34182}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).MassSend(context.Background(),
		&Credential{AccessToken: "tok-abc"}, "pub-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ErrCode)
	assert.Equal(t, "34182", result.MsgID)
}

func TestMassSendPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errcode":45028,"errmsg":"has no masssend quota"}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).MassSend(context.Background(),
		&Credential{AccessToken: "tok-abc"}, "pub-1")
	require.NoError(t, err)
	assert.Equal(t, 45028, result.ErrCode)
}
