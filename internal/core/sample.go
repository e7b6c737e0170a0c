package core

// SampleName is the display name of the built-in dataset.
const SampleName = "sample-fiber-intake.csv"

// sampleCSV is ten days of fiber and macronutrient intake, loaded into every
// new view so the chart is never blank on first visit.
const sampleCSV = `Date,Fiber Intake (g),Calories,Protein (g),Carbs (g),Fat (g)
2024-01-01,15,2200,80,250,70
2024-01-02,18,2100,85,240,65
2024-01-03,12,2300,75,260,75
2024-01-04,20,2000,90,230,60
2024-01-05,16,2150,82,245,68
2024-01-06,14,2250,78,255,72
2024-01-07,22,1950,95,220,55
2024-01-08,19,2050,88,235,62
2024-01-09,17,2180,83,248,69
2024-01-10,13,2280,76,258,74`

// SampleCSV returns the built-in dataset.
func SampleCSV() []byte { return []byte(sampleCSV) }
