package expression

// base is the resting face every preset starts from.
func base() Config {
	var c Config
	c[LeftEyeOpenness] = 1
	c[RightEyeOpenness] = 1
	c[PupilSize] = 1
	c[MouthWidth] = 0.5
	return c
}

var presets = map[Mood]Config{
	MoodNeutral: base(),

	MoodSmile: func() Config {
		c := base()
		c.Set(MouthCurve, 0.6)
		c.Set(MouthWidth, 0.65)
		c.Set(LeftCheekPuff, 0.15)
		c.Set(RightCheekPuff, 0.15)
		c.Set(LeftEyeOpenness, 0.85)
		c.Set(RightEyeOpenness, 0.85)
		return c
	}(),

	MoodFrown: func() Config {
		c := base()
		c.Set(MouthCurve, -0.5)
		c.Set(MouthWidth, 0.45)
		c.Set(LeftBrowAngle, -0.2)
		c.Set(RightBrowAngle, -0.2)
		c.Set(LeftBrowHeight, -0.1)
		c.Set(RightBrowHeight, -0.1)
		return c
	}(),

	MoodLaugh: func() Config {
		c := base()
		c.Set(MouthCurve, 0.9)
		c.Set(MouthWidth, 0.75)
		c.Set(MouthOpenness, 0.6)
		c.Set(LeftEyeOpenness, 0.4)
		c.Set(RightEyeOpenness, 0.4)
		c.Set(LeftCheekPuff, 0.35)
		c.Set(RightCheekPuff, 0.35)
		c.Set(LeftBrowHeight, 0.2)
		c.Set(RightBrowHeight, 0.2)
		return c
	}(),

	MoodAngry: func() Config {
		c := base()
		c.Set(LeftBrowAngle, 0.6)
		c.Set(RightBrowAngle, 0.6)
		c.Set(LeftBrowHeight, -0.35)
		c.Set(RightBrowHeight, -0.35)
		c.Set(MouthCurve, -0.4)
		c.Set(MouthWidth, 0.4)
		c.Set(LeftEyeOpenness, 0.75)
		c.Set(RightEyeOpenness, 0.75)
		c.Set(NoseScrunch, 0.5)
		c.Set(PupilSize, 0.85)
		return c
	}(),

	MoodSad: func() Config {
		c := base()
		c.Set(LeftBrowAngle, -0.5)
		c.Set(RightBrowAngle, -0.5)
		c.Set(LeftBrowCurve, 0.3)
		c.Set(RightBrowCurve, 0.3)
		c.Set(MouthCurve, -0.6)
		c.Set(LeftEyeOpenness, 0.7)
		c.Set(RightEyeOpenness, 0.7)
		c.Set(LeftPupilY, 1)
		c.Set(RightPupilY, 1)
		return c
	}(),

	MoodSurprise: func() Config {
		c := base()
		c.Set(LeftBrowHeight, 0.6)
		c.Set(RightBrowHeight, 0.6)
		c.Set(LeftBrowCurve, 0.4)
		c.Set(RightBrowCurve, 0.4)
		c.Set(MouthOpenness, 0.55)
		c.Set(MouthWidth, 0.35)
		c.Set(PupilSize, 1.25)
		return c
	}(),

	MoodConfusion: func() Config {
		c := base()
		c.Set(LeftBrowHeight, 0.35)
		c.Set(RightBrowHeight, -0.15)
		c.Set(LeftBrowAngle, -0.2)
		c.Set(RightBrowAngle, 0.3)
		c.Set(MouthCurve, -0.15)
		c.Set(MouthOffsetX, 0.2)
		c.Set(RightEyeOpenness, 0.8)
		return c
	}(),

	MoodThinking: func() Config {
		c := base()
		c.Set(LeftBrowHeight, 0.25)
		c.Set(RightBrowHeight, 0.1)
		c.Set(MouthOffsetX, -0.15)
		c.Set(MouthWidth, 0.4)
		c.Set(LeftPupilX, 1.5)
		c.Set(RightPupilX, 1.5)
		c.Set(LeftPupilY, -1.5)
		c.Set(RightPupilY, -1.5)
		return c
	}(),
}

// Preset returns the static expression for a mood. Unknown moods get the
// neutral face.
func Preset(m Mood) Config {
	if c, ok := presets[m]; ok {
		return c
	}
	return presets[MoodNeutral]
}
