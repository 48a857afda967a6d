package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/travel-concierge/internal/classifier"
	"github.com/xaenox/travel-concierge/internal/completion"
	"github.com/xaenox/travel-concierge/internal/grounding"
	"github.com/xaenox/travel-concierge/internal/models"
	"github.com/xaenox/travel-concierge/internal/prompt"
	"github.com/xaenox/travel-concierge/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeCompleter struct {
	configured bool
	reply      string
	err        error
	received   []models.ChatMessage
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func (f *fakeCompleter) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	f.received = messages
	return f.reply, f.err
}

func (f *fakeCompleter) systemPrompt() string {
	if len(f.received) == 0 {
		return ""
	}
	return f.received[0].Content
}

// thirtyCountries returns 30 countries that sort by name so Azerbaijan lands
// at ordinal 10.
func thirtyCountries() []models.Country {
	var list []models.Country
	for i := 0; i < 10; i++ {
		list = append(list, models.Country{ID: fmt.Sprintf("uuid-%d", i), Name: fmt.Sprintf("Aa%02d", i), Slug: fmt.Sprintf("aa-%02d", i)})
	}
	list = append(list, models.Country{ID: "uuid-10", Name: "Azerbaijan", Slug: "azerbaijan", FlagIcon: "🇦🇿", BestTimeToVisit: "May-June"})
	for i := 11; i < 30; i++ {
		list = append(list, models.Country{ID: fmt.Sprintf("uuid-%d", i), Name: fmt.Sprintf("Ca%02d", i), Slug: fmt.Sprintf("ca-%02d", i)})
	}
	return list
}

func newService(t *testing.T, store storage.Storage, completer Completer) *Service {
	logger := zaptest.NewLogger(t)
	return NewService(
		classifier.New(store, logger),
		grounding.NewBuilder(store, grounding.DefaultPolicy(), logger),
		prompt.NewAssembler(""),
		completer,
		grounding.NewHydrator(store, logger),
		logger,
	)
}

func azerbaijanRequest() []models.ChatMessage {
	return []models.ChatMessage{{Role: models.RoleUser, Content: "Azerbaijan hakkında bilgi ver"}}
}

func TestAnswer_ScenarioA_TaggedReply(t *testing.T) {
	store := storage.NewMemoryStorage(thirtyCountries(), nil)
	completer := &fakeCompleter{
		configured: true,
		reply:      "Azerbaijan, Hazar kıyısında harika bir rota. Ca12 de olabilir.\n\nCOUNTRIES: [10]",
	}
	svc := newService(t, store, completer)

	resp, err := svc.Answer(context.Background(), azerbaijanRequest())
	require.NoError(t, err)

	assert.NotContains(t, resp.Message, "COUNTRIES")
	assert.True(t, strings.HasSuffix(resp.Message, "Ca12 de olabilir."))

	require.NotNil(t, resp.Suggestions)
	assert.Equal(t, models.KindCountries, resp.Suggestions.Type)
	items := resp.Suggestions.Items.([]models.Country)
	require.Len(t, items, 1)
	assert.Equal(t, "uuid-10", items[0].ID)
	assert.Equal(t, "May-June", items[0].BestTimeToVisit)

	assert.Contains(t, completer.systemPrompt(), `"index": 10`)
	assert.Contains(t, completer.systemPrompt(), `"name": "Azerbaijan"`)
	assert.Equal(t, "Azerbaijan hakkında bilgi ver", completer.received[len(completer.received)-1].Content)
}

func TestAnswer_ScenarioB_FallbackToNames(t *testing.T) {
	store := storage.NewMemoryStorage(thirtyCountries(), nil)
	completer := &fakeCompleter{
		configured: true,
		reply:      "Bu yaz için **Azerbaijan**'ı önerebilirim, Bakü'nün eski şehri çok güzel.",
	}
	svc := newService(t, store, completer)

	resp, err := svc.Answer(context.Background(), azerbaijanRequest())
	require.NoError(t, err)
	assert.Equal(t, completer.reply, resp.Message)

	require.NotNil(t, resp.Suggestions)
	items := resp.Suggestions.Items.([]models.Country)
	require.Len(t, items, 1)
	assert.Equal(t, "uuid-10", items[0].ID)
}

func TestAnswer_ScenarioC_NoGrounding(t *testing.T) {
	store := storage.NewMemoryStorage(thirtyCountries(), nil)
	completer := &fakeCompleter{configured: true, reply: "Merhaba! Size nasıl yardımcı olabilirim?"}
	svc := newService(t, store, completer)

	resp, err := svc.Answer(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "Merhaba, nasılsın?"}})
	require.NoError(t, err)

	assert.Nil(t, resp.Suggestions)
	assert.Equal(t, "", prompt.Context(grounding.Set{}))
	assert.NotContains(t, completer.systemPrompt(), `"index"`)
}

func TestAnswer_News(t *testing.T) {
	now := time.Now()
	store := storage.NewMemoryStorage(nil, []models.NewsItem{
		{ID: 7, Title: "Bakü festivali başladı", Slug: "baku-festivali", Type: "news", Status: "published", PublishedAt: now},
		{ID: 8, Title: "Yeni vize kuralları", Slug: "yeni-vize-kurallari", Type: "news", Status: "draft", PublishedAt: now},
	})
	completer := &fakeCompleter{configured: true, reply: "Son gelişme: Bakü festivali başladı.\nNEWS: [0]"}
	svc := newService(t, store, completer)

	resp, err := svc.Answer(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "Son haberler neler?"}})
	require.NoError(t, err)

	assert.Equal(t, "Son gelişme: Bakü festivali başladı.", resp.Message)
	require.NotNil(t, resp.Suggestions)
	assert.Equal(t, models.KindNews, resp.Suggestions.Type)
	items := resp.Suggestions.Items.([]models.NewsItem)
	require.Len(t, items, 1)
	assert.Equal(t, int64(7), items[0].ID)
}

func TestAnswer_EmptyConversation(t *testing.T) {
	store := storage.NewMemoryStorage(thirtyCountries(), nil)
	completer := &fakeCompleter{configured: true, reply: "Nasıl yardımcı olabilirim?"}
	svc := newService(t, store, completer)

	for _, messages := range [][]models.ChatMessage{nil, {{Role: models.RoleUser, Content: ""}}} {
		resp, err := svc.Answer(context.Background(), messages)
		require.NoError(t, err)
		assert.Nil(t, resp.Suggestions)
	}
}

func TestAnswer_NotConfigured(t *testing.T) {
	completer := &fakeCompleter{configured: false}
	svc := newService(t, storage.NewMemoryStorage(nil, nil), completer)

	_, err := svc.Answer(context.Background(), azerbaijanRequest())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, completer.received, "no completion call without configuration")
}

func TestAnswer_CompletionErrorPropagates(t *testing.T) {
	completer := &fakeCompleter{configured: true, err: &completion.Error{Kind: completion.ErrTimeout}}
	svc := newService(t, storage.NewMemoryStorage(thirtyCountries(), nil), completer)

	_, err := svc.Answer(context.Background(), azerbaijanRequest())
	assert.ErrorIs(t, err, completion.ErrTimeout)
}

func TestCompletionOutcome(t *testing.T) {
	assert.Equal(t, "ok", completionOutcome(nil))
	assert.Equal(t, "timeout", completionOutcome(&completion.Error{Kind: completion.ErrTimeout}))
	assert.Equal(t, "unavailable", completionOutcome(&completion.Error{Kind: completion.ErrUnavailable}))
	assert.Equal(t, "upstream_error", completionOutcome(&completion.Error{Kind: completion.ErrUpstreamStatus}))
	assert.Equal(t, "empty", completionOutcome(&completion.Error{Kind: completion.ErrEmptyResponse}))
	assert.Equal(t, "error", completionOutcome(fmt.Errorf("boom")))
}

func BenchmarkAnswer(b *testing.B) {
	store := storage.NewMemoryStorage(thirtyCountries(), nil)
	completer := &fakeCompleter{configured: true, reply: "Azerbaijan.\nCOUNTRIES: [10]"}
	logger := zap.NewNop()
	svc := NewService(
		classifier.New(store, logger),
		grounding.NewBuilder(store, grounding.DefaultPolicy(), logger),
		prompt.NewAssembler(""),
		completer,
		grounding.NewHydrator(store, logger),
		logger,
	)

	for i := 0; i < b.N; i++ {
		if _, err := svc.Answer(context.Background(), azerbaijanRequest()); err != nil {
			b.Fatal(err)
		}
	}
}
