package translator

import "testing"

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "no context",
			req:  Request{CurrentSource: "Привет", SourceLang: "Russian", TargetLang: "English"},
			want: "Translate from Russian to English. Output ONLY the translation, nothing else.\n\n" +
				`Text: "Привет"`,
		},
		{
			name: "with context",
			req: Request{
				CurrentSource:       "Привет мой друг",
				PreviousSource:      "Привет",
				PreviousTranslation: "Hello",
				SourceLang:          "Russian",
				TargetLang:          "English",
			},
			want: "Translate from Russian to English. Output ONLY the translation, nothing else.\n\n" +
				`Context: "Привет" = "Hello"` + "\n" +
				`Full text: "Привет мой друг"`,
		},
		{
			name: "half context is ignored",
			req:  Request{CurrentSource: "hello there", PreviousSource: "hello", SourceLang: "English", TargetLang: "Russian"},
			want: "Translate from English to Russian. Output ONLY the translation, nothing else.\n\n" +
				`Text: "hello there"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPrompt(tt.req); got != tt.want {
				t.Errorf("BuildPrompt() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}
