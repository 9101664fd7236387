package eds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptSrcs(t *testing.T) {
	html := `<html><head>
<script type="text/javascript" src="/first.js"></script>
<script>inline()</script>
<script async src="/second.js?q=%7B%7D"></script>
</head></html>`

	assert.Equal(t, []string{"/first.js", "/second.js?q=%7B%7D"}, scriptSrcs(html))
	assert.Nil(t, scriptSrcs("<html></html>"))
}

func TestExtractAuraConfig(t *testing.T) {
	html := `<script>var auraConfig = {"token":"abc","mode":"PROD"};doSomething();</script>`
	raw, err := extractAuraConfig(html)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc","mode":"PROD"}`, string(raw))

	_, err = extractAuraConfig("<html>nothing here</html>")
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)

	_, err = extractAuraConfig("auraConfig = {broken")
	assert.ErrorAs(t, err, &perr)
}

func TestContextFromResourceSrc(t *testing.T) {
	src := "/s/sfsites/auraFW/javascript/x/resources.js?aura.attributes=%7B%22mode%22%3A%22PROD%22%2C%22app%22%3A%22siteforce%3AcommunityApp%22%7D"
	raw, err := contextFromResourceSrc(src)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"PROD","app":"siteforce:communityApp"}`, string(raw))

	_, err = contextFromResourceSrc("/resources.js")
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
}
