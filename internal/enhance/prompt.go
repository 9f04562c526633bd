package enhance

import (
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/deepimage"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

const (
	// OutputSize is the fixed width and height of every generated avatar.
	OutputSize = 1024

	adapterFace = "face"

	womanPrompt = "A fearless female warrior in ornate armor standing in the desert, sand swirling around her boots. " +
		"Sword in hand, confident stance, dramatic desert backdrop, cinematic lighting, full body shot."
	manPrompt = "A heroic warrior wearing bronze and black medieval armor, standing confidently in the middle of a vast desert " +
		"with sand splashing around and beneath his feet. The sky is clear and blue. A sword is in his hand and another " +
		"is sheathed on his back. Cinematic lighting, full body shot."
)

// PromptFor returns the background description for a gender. Gender is
// validated at the HTTP boundary, so anything but woman gets the man prompt.
func PromptFor(gender domain.Gender) string {
	if gender == domain.GenderWoman {
		return womanPrompt
	}
	return manPrompt
}

// ParametersFor builds the generation parameters sent with a submission.
func ParametersFor(gender domain.Gender) deepimage.Parameters {
	return deepimage.Parameters{
		Width:  OutputSize,
		Height: OutputSize,
		Background: deepimage.Background{
			Generate: deepimage.Generate{
				Description: PromptFor(gender),
				AdapterType: adapterFace,
				FaceID:      true,
			},
		},
	}
}
